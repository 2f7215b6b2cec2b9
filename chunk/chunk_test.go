package chunk

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeSource(t *testing.T, path string, headerRow int, column string, addresses []string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	cell, err := excelize.CoordinatesToCellName(2, headerRow)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue(sheet, cell, column); err != nil {
		t.Fatal(err)
	}
	for i, addr := range addresses {
		cell, err := excelize.CoordinatesToCellName(2, headerRow+1+i)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetCellValue(sheet, cell, addr); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestReadColumnFindsHeaderBelowTopRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.xlsx")
	addrs := []string{"서울특별시 중구 세종대로 110", "부산광역시 연제구 중앙대로 1001", ""}
	writeSource(t, path, 3, "주소", addrs)

	records, err := ReadColumn(path, "주소")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (blank skipped), got %d", len(records))
	}
	if records[0].Address != addrs[0] || records[0].Index != 0 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
}

func TestReadColumnMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.xlsx")
	writeSource(t, path, 1, "주소", []string{"x"})

	if _, err := ReadColumn(path, "ADDRESS"); err == nil {
		t.Fatal("expected error for missing column")
	}
}

func TestSplit(t *testing.T) {
	records := make([]Record, 7)
	chunks := Split(records, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d, %d", len(chunks[0]), len(chunks[2]))
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := Split(nil, 3); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := []Record{
		{Index: 0, Address: "대전광역시 서구 둔산로 100"},
		{Index: 1, Address: "인천광역시 남동구 정각로 29"},
		{Index: 2, Address: "광주광역시 서구 내방로 111"},
	}

	paths, err := Write(dir, "dataset", Split(records, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 chunk files, got %d", len(paths))
	}
	for i, p := range paths {
		want := fmt.Sprintf("dataset_chunk_%d.xlsx", i)
		if filepath.Base(p) != want {
			t.Fatalf("expected %s, got %s", want, filepath.Base(p))
		}
	}

	got, err := ReadColumn(paths[0], HeaderAddress)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Address != records[0].Address {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
