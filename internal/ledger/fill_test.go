package ledger

import (
	"reflect"
	"testing"
)

func TestFillDatesPropagatesVoucherDate(t *testing.T) {
	txns := []Transaction{
		{Date: "", VchNo: "0"},
		{Date: "01 Apr 24", VchNo: "1"},
		{Date: "", VchNo: "1"},
		{Date: "  ", VchNo: "1"},
		{Date: "03 Apr 24", VchNo: "2"},
		{Date: "", VchNo: "2"},
	}
	rows := FillDates(txns)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.DisplayDate
	}
	want := []string{"", "01 Apr 24", "01 Apr 24", "01 Apr 24", "03 Apr 24", "03 Apr 24"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if txns[2].Date != "" {
		t.Fatalf("input mutated")
	}
	for i := range rows {
		if rows[i].Transaction != txns[i] {
			t.Fatalf("row %d transaction changed", i)
		}
	}
}

func TestFillDatesIsIdempotent(t *testing.T) {
	txns := []Transaction{
		{Date: "01 Apr 24"},
		{Date: ""},
		{Date: "02 Apr 24"},
		{Date: ""},
	}
	once := FillDates(txns)
	twice := FillDates(PromoteDisplayDates(once))
	for i := range once {
		if once[i].DisplayDate != twice[i].DisplayDate {
			t.Fatalf("row %d: %q != %q", i, once[i].DisplayDate, twice[i].DisplayDate)
		}
	}
}

func TestFillDatesEmpty(t *testing.T) {
	if rows := FillDates(nil); len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
