package export

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"bioclim/internal/types"
)

func resultTable() types.Table {
	return types.Table{
		Index:   []string{"latitude", "longitude", "BIO1", "BIO12"},
		Columns: []string{"P1", "P2", "P3"},
		Cells: [][]float64{
			{-27.80, -27.85, -27.90},
			{-50.10, -50.20, -50.30},
			{180, 176, 171},
			{1500, 1620, 1710},
		},
	}
}

func TestEncodeCSV_Layout(t *testing.T) {
	data, err := EncodeCSV(resultTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := ";P1;P2;P3\n" +
		"latitude;-27,8;-27,85;-27,9\n" +
		"longitude;-50,1;-50,2;-50,3\n" +
		"BIO1;180;176;171\n" +
		"BIO12;1500;1620;1710\n"
	if string(data) != want {
		t.Errorf("encoded CSV:\n%s\nwant:\n%s", data, want)
	}
}

func TestEncodeCSV_Deterministic(t *testing.T) {
	first, err := EncodeCSV(resultTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := EncodeCSV(resultTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical tables must encode to identical bytes")
	}
}

func TestEncodeCSV_NaNRendersEmpty(t *testing.T) {
	table := resultTable()
	table.Cells[3][1] = math.NaN()

	data, err := EncodeCSV(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "BIO12;1500;;1710\n") {
		t.Errorf("NaN must render as an empty field:\n%s", data)
	}
}

func TestEncodeCSV_SeparatorInLabelIsQuoted(t *testing.T) {
	table := types.Table{
		Index:   []string{"latitude"},
		Columns: []string{"A;B", "1,5 km"},
		Cells:   [][]float64{{-27.8, -27.9}},
	}

	data, err := EncodeCSV(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(data)
	if !strings.HasPrefix(got, `;"A;B";1,5 km`) {
		t.Errorf("header = %q", got)
	}
}

func TestEncodeCSV_DecimalCommaIsNotQuoted(t *testing.T) {
	table := types.Table{
		Index:   []string{"BIO12"},
		Columns: []string{"P1"},
		Cells:   [][]float64{{1500.5}},
	}

	data, err := EncodeCSV(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "BIO12;1500,5\n") {
		t.Errorf("encoded CSV:\n%s", data)
	}
}

func TestEncodeCSV_UTF8LabelsPassThrough(t *testing.T) {
	table := types.Table{
		Index:   []string{"latitude"},
		Columns: []string{"Fazenda São João", "Área 2"},
		Cells:   [][]float64{{-27.8, -27.9}},
	}

	data, err := EncodeCSV(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "Fazenda São João;Área 2") {
		t.Errorf("encoded CSV:\n%s", data)
	}
}

func TestEncodeCSV_NotRectangular(t *testing.T) {
	table := types.Table{
		Index:   []string{"latitude", "longitude"},
		Columns: []string{"P1"},
		Cells:   [][]float64{{-27.8}},
	}

	if _, err := EncodeCSV(table); err == nil {
		t.Fatal("expected an error for a ragged table")
	}

	table = types.Table{
		Index:   []string{"latitude"},
		Columns: []string{"P1", "P2"},
		Cells:   [][]float64{{-27.8}},
	}
	if _, err := EncodeCSV(table); err == nil {
		t.Fatal("expected an error for a row shorter than the header")
	}
}

func TestSuggestedFilename(t *testing.T) {
	now := time.Date(2026, time.August, 25, 14, 30, 0, 0, time.UTC)
	if got := SuggestedFilename(now); got != "bioclim_20260825_143000.csv" {
		t.Errorf("filename = %q", got)
	}
}

func TestSuggestedFilename_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2026, time.August, 25, 21, 0, 0, 0, loc)
	if got := SuggestedFilename(now); got != "bioclim_20260826_000000.csv" {
		t.Errorf("filename = %q", got)
	}
}
