package extract

import (
	"strings"
	"testing"
)

const validComplaint = "The water supply in our colony has been disrupted for the last three days and residents are facing severe problems"

func TestSplit_GrievanceMarkers(t *testing.T) {
	text := "GRIEVANCE: " + validComplaint + "\n" +
		"GRIEVANCE: The garbage collection truck has not visited our street for two weeks and waste is piling up everywhere"

	got := Split(text)
	if len(got) != 2 {
		t.Fatalf("Expected 2 grievances, got %d: %v", len(got), got)
	}
	for _, g := range got {
		if strings.HasPrefix(g, "GRIEVANCE") {
			t.Errorf("Marker prefix not stripped: %q", g)
		}
	}
}

func TestSplit_NumberedList(t *testing.T) {
	text := "1. The road near the market has large potholes that have damaged several vehicles this month alone\n" +
		"2. Streetlights in our lane have not been working for over a week causing safety problems at night"

	got := Split(text)
	if len(got) != 2 {
		t.Fatalf("Expected 2 grievances, got %d: %v", len(got), got)
	}
	for i, g := range got {
		if strings.HasPrefix(strings.TrimSpace(g), "1.") || strings.HasPrefix(strings.TrimSpace(g), "2.") {
			t.Errorf("Grievance %d kept its list number: %q", i, g)
		}
	}
}

func TestSplit_BlankLineParagraphs(t *testing.T) {
	text := validComplaint + "\n\nSewage is overflowing from the manhole near the school gate and the smell is a serious health problem for children"

	got := Split(text)
	if len(got) != 2 {
		t.Fatalf("Expected 2 grievances, got %d: %v", len(got), got)
	}
}

func TestSplit_WholeTextFallback(t *testing.T) {
	got := Split(validComplaint)
	if len(got) != 1 {
		t.Fatalf("Expected whole-text fallback to yield 1 grievance, got %d", len(got))
	}
}

func TestSplit_HeaderOnlyPage(t *testing.T) {
	text := "Grievance Collection Report\n\nMunicipal Corporation of the city, all wards and sector offices combined summary\n\nTotal grievances received in the period: forty two"
	if got := Split(text); got != nil {
		t.Errorf("Expected nil for header-only page, got %v", got)
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"real complaint", validComplaint, true},
		{"too short", "Water problem here", false},
		{"too few tokens", "Waterproblemwaterproblemwaterproblemwaterproblem here now sir", false},
		{"collection header", "Grievance Collection for ward seven, submitted in the month of January by the office clerk on duty", false},
		{"batch header", "Batch 12 containing all the water and road complaints received from sector offices during the last month", false},
		{"date line", "Date: complaints regarding water and garbage collected from all the city wards during the past seven days", false},
		{"page header", "Page 3 of the collected water and road complaints submitted by all the residents of the city wards", false},
		{"no complaint keywords", "We would like to express our gratitude towards the excellent civic amenities provided in our neighbourhood this year", false},
	}
	for _, c := range cases {
		if got := IsValid(c.candidate); got != c.want {
			t.Errorf("%s: IsValid = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestExtractCore_StripsPrefixesAndOpenings(t *testing.T) {
	cases := []struct {
		in       string
		wantLead string
	}{
		{
			"GRIEVANCE: " + validComplaint,
			"The water supply",
		},
		{
			"Ticket No. ABC/123: " + validComplaint,
			"The water supply",
		},
		{
			"12/03/2024: " + validComplaint,
			"The water supply",
		},
		{
			"Dear Sir, " + validComplaint,
			"The water supply",
		},
		{
			"Respected Sir, I am writing to complain about the broken streetlight on our road which has caused several accidents",
			"the broken streetlight",
		},
	}
	for _, c := range cases {
		got, ok := ExtractCore(c.in)
		if !ok {
			t.Errorf("ExtractCore(%q) rejected a valid candidate", c.in)
			continue
		}
		if !strings.HasPrefix(got, c.wantLead) {
			t.Errorf("ExtractCore(%q) = %q, want prefix %q", c.in, got, c.wantLead)
		}
	}
}

func TestExtractCore_RejectsWhenLittleRemains(t *testing.T) {
	if _, ok := ExtractCore("Dear Sir, water problem"); ok {
		t.Error("Expected rejection when stripped core is too short")
	}
}
