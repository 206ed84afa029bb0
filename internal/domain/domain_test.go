package domain

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input   string
		want    Month
		wantErr bool
	}{
		{"01/2026", Month{2026, time.January}, false},
		{"9/2025", Month{2025, time.September}, false},
		{"13/2025", Month{}, true},
		{"2025-01", Month{}, true},
		{"01/25", Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMonth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonth_ChronologicalOrder(t *testing.T) {
	dec := Month{2025, time.December}
	jan := Month{2026, time.January}

	// Lexically "12/2025" > "01/2026"; chronologically it is earlier.
	if !dec.Before(jan) {
		t.Errorf("expected %v before %v", dec, jan)
	}
	if dec.Next() != jan {
		t.Errorf("Next() = %v, want %v", dec.Next(), jan)
	}
	if jan.Prev() != dec {
		t.Errorf("Prev() = %v, want %v", jan.Prev(), dec)
	}
	if jan.Compare(jan) != 0 {
		t.Error("expected month to compare equal to itself")
	}
}

func TestMonth_JSON(t *testing.T) {
	b, err := json.Marshal(Month{2024, time.March})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"03/2024"` {
		t.Errorf("Marshal = %s, want \"03/2024\"", b)
	}

	var m Month
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m != (Month{2024, time.March}) {
		t.Errorf("Unmarshal = %v", m)
	}
}

func TestNewTransaction_DerivedFields(t *testing.T) {
	date := civil.Date{Year: 2024, Month: time.March, Day: 18} // Monday
	billing := civil.Date{Year: 2024, Month: time.April, Day: 2}

	tx := NewTransaction(date, &billing, -120.5, "Grocer", "Food")

	if tx.AbsoluteAmount != 120.5 {
		t.Errorf("AbsoluteAmount = %v, want 120.5", tx.AbsoluteAmount)
	}
	if tx.Month.String() != "03/2024" {
		t.Errorf("Month = %v, want 03/2024", tx.Month)
	}
	if tx.BillingMonth == nil || tx.BillingMonth.String() != "04/2024" {
		t.Errorf("BillingMonth = %v, want 04/2024", tx.BillingMonth)
	}
	if tx.Weekday != 0 {
		t.Errorf("Weekday = %d, want 0 (Monday)", tx.Weekday)
	}
	if !tx.IsExpense() {
		t.Error("expected expense")
	}

	sunday := NewTransaction(civil.Date{Year: 2024, Month: time.March, Day: 24}, nil, 10, "Salary", "Income")
	if sunday.Weekday != 6 {
		t.Errorf("Weekday = %d, want 6 (Sunday)", sunday.Weekday)
	}
	if sunday.BillingMonth != nil {
		t.Error("expected no billing month")
	}
}
