package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &Case{
		CaseNumber:  "AE-2026-001",
		DrugName:    "Aspirin",
		Description: "Severe gastric bleeding after two weeks of daily use",
		Severity:    SeveritySevere,
		Symptoms:    "melena, dizziness",
	}
	id, err := s.SaveCase(ctx, c)
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got.DrugName != "Aspirin" {
		t.Errorf("DrugName = %q, want Aspirin", got.DrugName)
	}
	if got.Status != StatusNew {
		t.Errorf("Status = %q, want %q (default)", got.Status, StatusNew)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestGetCaseNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCase(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &Case{CaseNumber: "AE-1", DrugName: "Metformin", Description: "nausea"}
	id, err := s.SaveCase(ctx, c)
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	c.Status = StatusUnderInvestigation
	c.Causality = CausalityProbable
	if _, err := s.SaveCase(ctx, c); err != nil {
		t.Fatalf("SaveCase update: %v", err)
	}

	got, err := s.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got.Status != StatusUnderInvestigation {
		t.Errorf("Status = %q, want UNDER_INVESTIGATION", got.Status)
	}
	if got.Causality != CausalityProbable {
		t.Errorf("Causality = %q, want PROBABLE", got.Causality)
	}
}

func TestUpdateMissingCase(t *testing.T) {
	s := newTestStore(t)

	c := &Case{ID: 42, CaseNumber: "AE-42", DrugName: "X", Description: "y"}
	_, err := s.SaveCase(context.Background(), c)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for update of missing case, got %v", err)
	}
}

func TestListCasesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*Case{
		{CaseNumber: "AE-1", DrugName: "Aspirin", Description: "d1", Severity: SeveritySevere, Status: StatusNew},
		{CaseNumber: "AE-2", DrugName: "Aspirin", Description: "d2", Severity: SeverityMild, Status: StatusConfirmed},
		{CaseNumber: "AE-3", DrugName: "Metformin", Description: "d3", Severity: SeveritySevere, Status: StatusNew},
	}
	for _, c := range seed {
		if _, err := s.SaveCase(ctx, c); err != nil {
			t.Fatalf("SaveCase: %v", err)
		}
	}

	all, err := s.ListCases(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d cases, want 3", len(all))
	}

	severe, err := s.ListCases(ctx, ListOpts{Severity: SeveritySevere})
	if err != nil {
		t.Fatalf("ListCases severity: %v", err)
	}
	if len(severe) != 2 {
		t.Errorf("got %d severe cases, want 2", len(severe))
	}

	aspirin, err := s.ListCases(ctx, ListOpts{DrugName: "aspir"})
	if err != nil {
		t.Fatalf("ListCases drug: %v", err)
	}
	if len(aspirin) != 2 {
		t.Errorf("got %d aspirin cases, want 2", len(aspirin))
	}

	combined, err := s.ListCases(ctx, ListOpts{DrugName: "Aspirin", Status: StatusNew})
	if err != nil {
		t.Fatalf("ListCases combined: %v", err)
	}
	if len(combined) != 1 || combined[0].CaseNumber != "AE-1" {
		t.Errorf("combined filter returned %d cases, want AE-1 only", len(combined))
	}

	limited, err := s.ListCases(ctx, ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("ListCases limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d cases with limit 2, want 2", len(limited))
	}
}

func TestListCasesByPatient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Patient{PatientID: "PAT-001", FirstName: "Jane", LastName: "Doe"}
	pid, err := s.SavePatient(ctx, p)
	if err != nil {
		t.Fatalf("SavePatient: %v", err)
	}

	if _, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-1", DrugName: "A", Description: "d", PatientID: &pid}); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}
	if _, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-2", DrugName: "B", Description: "d"}); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	got, err := s.ListCases(ctx, ListOpts{PatientExternalID: "PAT-001"})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 1 || got[0].CaseNumber != "AE-1" {
		t.Errorf("got %d cases for PAT-001, want AE-1 only", len(got))
	}
	if got[0].PatientExternalID != "PAT-001" {
		t.Errorf("PatientExternalID = %q, want PAT-001", got[0].PatientExternalID)
	}
}

func TestGetCaseResolvesPatientExternalID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pid, err := s.SavePatient(ctx, &Patient{PatientID: "PAT-001", FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		t.Fatalf("SavePatient: %v", err)
	}

	caseID, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-1", DrugName: "A", Description: "d", PatientID: &pid})
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}
	unlinkedID, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-2", DrugName: "B", Description: "d"})
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	linked, err := s.GetCase(ctx, caseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if linked.PatientExternalID != "PAT-001" {
		t.Errorf("PatientExternalID = %q, want PAT-001", linked.PatientExternalID)
	}

	unlinked, err := s.GetCase(ctx, unlinkedID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if unlinked.PatientExternalID != "" {
		t.Errorf("PatientExternalID = %q for unlinked case, want empty", unlinked.PatientExternalID)
	}
}

func TestAnalysesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	caseID, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-1", DrugName: "A", Description: "d"})
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	a := &Analysis{
		CaseID:          caseID,
		Type:            AnalysisCausality,
		Response:        "CAUSALITY: PROBABLE",
		Model:           "google/gemini-2.5-flash",
		Insights:        "temporal relationship established",
		Recommendations: "monitor liver function",
		Status:          AnalysisCompleted,
	}
	if _, err := s.SaveAnalysis(ctx, a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if _, err := s.SaveAnalysis(ctx, &Analysis{CaseID: caseID, Type: AnalysisRisk, Status: AnalysisFailed}); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	got, err := s.ListAnalysesByCase(ctx, caseID)
	if err != nil {
		t.Fatalf("ListAnalysesByCase: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d analyses, want 2", len(got))
	}
	if got[0].Type != AnalysisCausality || got[1].Type != AnalysisRisk {
		t.Errorf("analyses out of order: %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Insights != "temporal relationship established" {
		t.Errorf("Insights = %q", got[0].Insights)
	}
}

func TestAnalysisDefaultStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Analysis{Type: AnalysisPattern, Response: "no pattern"}
	if _, err := s.SaveAnalysis(ctx, a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if a.Status != AnalysisPending {
		t.Errorf("Status = %q, want PENDING default", a.Status)
	}
}

func TestActionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	caseID, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-1", DrugName: "A", Description: "d"})
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	before := time.Now()
	a := &FollowUpAction{
		CaseID:      caseID,
		Type:        ActionInvestigation,
		Description: "Investigate severe adverse event",
		AssignedTo:  "Safety Team",
	}
	if _, err := s.SaveAction(ctx, a); err != nil {
		t.Fatalf("SaveAction: %v", err)
	}

	got, err := s.ListActionsByCase(ctx, caseID)
	if err != nil {
		t.Fatalf("ListActionsByCase: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d actions, want 1", len(got))
	}
	if got[0].Status != ActionPending {
		t.Errorf("Status = %q, want PENDING default", got[0].Status)
	}
	// Default due date is a week out.
	wantDue := before.Add(7 * 24 * time.Hour)
	if got[0].DueDate.Before(wantDue.Add(-time.Minute)) || got[0].DueDate.After(wantDue.Add(time.Minute)) {
		t.Errorf("DueDate = %v, want ~%v", got[0].DueDate, wantDue)
	}
}

func TestPatientRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Patient{
		PatientID:      "PAT-001",
		FirstName:      "John",
		LastName:       "Smith",
		Gender:         "M",
		MedicalHistory: "hypertension",
	}
	if _, err := s.SavePatient(ctx, p); err != nil {
		t.Fatalf("SavePatient: %v", err)
	}

	got, err := s.GetPatientByExternalID(ctx, "PAT-001")
	if err != nil {
		t.Fatalf("GetPatientByExternalID: %v", err)
	}
	if got.FirstName != "John" || got.MedicalHistory != "hypertension" {
		t.Errorf("got %+v", got)
	}

	_, err = s.GetPatientByExternalID(ctx, "PAT-999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDrugRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	drugs := []*Drug{
		{DrugCode: "ASP-100", DrugName: "Aspirin", GenericName: "acetylsalicylic acid"},
		{DrugCode: "MET-500", DrugName: "Metformin", GenericName: "metformin hydrochloride"},
	}
	for _, d := range drugs {
		if _, err := s.SaveDrug(ctx, d); err != nil {
			t.Fatalf("SaveDrug: %v", err)
		}
	}

	got, err := s.GetDrugByCode(ctx, "ASP-100")
	if err != nil {
		t.Fatalf("GetDrugByCode: %v", err)
	}
	if got.DrugName != "Aspirin" {
		t.Errorf("DrugName = %q", got.DrugName)
	}
	if got.Status != "ACTIVE" {
		t.Errorf("Status = %q, want ACTIVE default", got.Status)
	}

	_, err = s.GetDrugByCode(ctx, "NOPE")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byName, err := s.FindDrugsByName(ctx, "metformin")
	if err != nil {
		t.Fatalf("FindDrugsByName: %v", err)
	}
	if len(byName) != 1 || byName[0].DrugCode != "MET-500" {
		t.Errorf("FindDrugsByName returned %d drugs", len(byName))
	}

	// Generic name matches too.
	byGeneric, err := s.FindDrugsByName(ctx, "acetylsalicylic")
	if err != nil {
		t.Fatalf("FindDrugsByName: %v", err)
	}
	if len(byGeneric) != 1 || byGeneric[0].DrugCode != "ASP-100" {
		t.Errorf("FindDrugsByName by generic returned %d drugs", len(byGeneric))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SavePatient(ctx, &Patient{PatientID: "PAT-001", FirstName: "A", LastName: "B"}); err != nil {
		t.Fatalf("SavePatient: %v", err)
	}
	if _, err := s.SaveDrug(ctx, &Drug{DrugCode: "D-1", DrugName: "DrugOne"}); err != nil {
		t.Fatalf("SaveDrug: %v", err)
	}
	caseID, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-1", DrugName: "DrugOne", Description: "d", Severity: SeveritySevere})
	if err != nil {
		t.Fatalf("SaveCase: %v", err)
	}
	if _, err := s.SaveCase(ctx, &Case{CaseNumber: "AE-2", DrugName: "DrugOne", Description: "d"}); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}
	if _, err := s.SaveAnalysis(ctx, &Analysis{CaseID: caseID, Type: AnalysisCausality}); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if _, err := s.SaveAction(ctx, &FollowUpAction{CaseID: caseID, Type: ActionDrugSafetyReview}); err != nil {
		t.Fatalf("SaveAction: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalCases != 2 || st.TotalPatients != 1 || st.TotalDrugs != 1 ||
		st.TotalAnalyses != 1 || st.TotalActions != 1 {
		t.Errorf("Stats = %+v", st)
	}
	if st.SeverityCounts[SeveritySevere] != 1 {
		t.Errorf("SeverityCounts = %v", st.SeverityCounts)
	}
	// Cases with no severity set roll up under UNSPECIFIED.
	if st.SeverityCounts["UNSPECIFIED"] != 1 {
		t.Errorf("SeverityCounts = %v", st.SeverityCounts)
	}
	if st.StatusCounts[StatusNew] != 2 {
		t.Errorf("StatusCounts = %v", st.StatusCounts)
	}
}

func TestValidEnums(t *testing.T) {
	if !ValidSeverity(SeverityLifeThreatening) {
		t.Error("LIFE_THREATENING should be valid")
	}
	if ValidSeverity("CATASTROPHIC") {
		t.Error("CATASTROPHIC should be invalid")
	}
	if !ValidStatus(StatusClosed) {
		t.Error("CLOSED should be valid")
	}
	if ValidStatus("ARCHIVED") {
		t.Error("ARCHIVED should be invalid")
	}
}
