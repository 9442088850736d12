package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	calls   int
	details models.ProjectDetails
	ready   []models.UploadedDocument
	err     error
	during  func()
}

func (f *fakeCreator) CreateProject(_ context.Context, details models.ProjectDetails, _ string, ready []models.UploadedDocument) (string, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return "", f.err
	}
	f.details = details
	f.ready = ready
	return "proj-1", nil
}

func newController(t *testing.T, creator ProjectCreator, opts ...Option) (*Controller, *intake.Tracker) {
	t.Helper()
	registry := intake.DefaultRegistry()
	tracker := intake.NewTracker(registry)
	return NewController(registry, tracker, creator, opts...), tracker
}

func readyUpload(t *testing.T, tracker *intake.Tracker, docType models.DocumentType) models.UploadedDocument {
	t.Helper()
	doc, err := tracker.BeginUpload(docType, string(docType)+".pdf", 2048)
	require.NoError(t, err)
	require.NoError(t, tracker.CompleteUpload(doc.ID))
	got, _ := tracker.Get(doc.ID)
	return got
}

func TestDetailsStepRequiresTrimmedFields(t *testing.T) {
	c, _ := newController(t, &fakeCreator{})
	c.SetDetails(models.ProjectDetails{Name: "   ", ClientAlias: "\t"})

	step, err := c.Next()
	require.ErrorIs(t, err, ErrIncompleteDetails)
	assert.Equal(t, StepDetails, step)

	var detailsErr *DetailsError
	require.ErrorAs(t, err, &detailsErr)
	assert.Equal(t, []FieldError{
		{Field: "name", Message: "is required"},
		{Field: "clientAlias", Message: "is required"},
	}, detailsErr.Fields)

	c.SetDetails(models.ProjectDetails{Name: "CRM Onboarding", ClientAlias: "ACME Corp"})
	step, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, StepDocumentUpload, step)
}

func TestValidateDetailsRejectsUnknownTemplate(t *testing.T) {
	err := ValidateDetails(models.ProjectDetails{Name: "a", ClientAlias: "b", Template: "marketing"}, DetailsRules)
	var detailsErr *DetailsError
	require.ErrorAs(t, err, &detailsErr)
	assert.Equal(t, "template", detailsErr.Fields[0].Field)

	assert.NoError(t, ValidateDetails(models.ProjectDetails{Name: "a", ClientAlias: "b", Template: models.TemplateSales}, DetailsRules))
}

func TestUploadStepBlocksOnGate(t *testing.T) {
	c, tracker := newController(t, &fakeCreator{}, WithDetails(models.ProjectDetails{Name: "n", ClientAlias: "c"}))
	_, err := c.Next()
	require.NoError(t, err)

	readyUpload(t, tracker, models.DocScope)
	step, err := c.Next()
	require.ErrorIs(t, err, intake.ErrIntakeIncomplete)
	assert.Equal(t, StepDocumentUpload, step)
	assert.Equal(t, []models.DocumentType{models.DocTranscription}, c.Missing())

	readyUpload(t, tracker, models.DocTranscription)
	assert.Empty(t, c.Missing())
	step, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, StepReview, step)
}

func TestBackNeverValidates(t *testing.T) {
	c, tracker := newController(t, &fakeCreator{}, WithDetails(models.ProjectDetails{Name: "n", ClientAlias: "c"}))
	readyUpload(t, tracker, models.DocTranscription)
	_, err := c.Next()
	require.NoError(t, err)
	_, err = c.Next()
	require.NoError(t, err)

	c.SetDetails(models.ProjectDetails{})
	assert.Equal(t, StepDocumentUpload, c.Back())
	assert.Equal(t, StepDetails, c.Back())
	assert.Equal(t, StepDetails, c.Back())
	assert.Equal(t, models.ProjectDetails{}, c.Details(), "going back keeps the form as entered")
}

func TestFinalize(t *testing.T) {
	creator := &fakeCreator{}
	c, tracker := newController(t, creator,
		WithDetails(models.ProjectDetails{Name: "  Sales Pipeline  ", ClientAlias: "TechStart Inc"}),
		WithCreatedBy("mike"),
	)
	transcription := readyUpload(t, tracker, models.DocTranscription)
	pending, err := tracker.BeginUpload(models.DocOther, "notes.txt", 10)
	require.NoError(t, err)

	_, err = c.Finalize(context.Background())
	require.ErrorIs(t, err, ErrNotAtReview)

	_, err = c.Next()
	require.NoError(t, err)
	_, err = c.Next()
	require.NoError(t, err)

	wf, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProjectProcessing, wf.Status())
	assert.Equal(t, 1, wf.Cycle())
	assert.Equal(t, "proj-1", wf.Project().ID)
	assert.Equal(t, "mike", wf.Project().CreatedBy)

	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, "Sales Pipeline", creator.details.Name)
	assert.Equal(t, models.TemplateStandard, creator.details.Template)
	require.Len(t, creator.ready, 1, "only ready uploads are handed over")
	assert.Equal(t, transcription.ID, creator.ready[0].ID)
	assert.NotEqual(t, pending.ID, creator.ready[0].ID)

	_, err = c.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Equal(t, 1, creator.calls)
}

func TestFinalizeRevalidatesEveryStep(t *testing.T) {
	creator := &fakeCreator{}
	c, tracker := newController(t, creator, WithDetails(models.ProjectDetails{Name: "n", ClientAlias: "c"}))
	doc := readyUpload(t, tracker, models.DocTranscription)
	_, _ = c.Next()
	_, _ = c.Next()
	require.Equal(t, StepReview, c.Step())

	require.NoError(t, tracker.Remove(doc.ID))
	_, err := c.Finalize(context.Background())
	require.ErrorIs(t, err, intake.ErrIntakeIncomplete)
	assert.Zero(t, creator.calls)
}

func TestFinalizeSubmitsTheDocumentsItChecked(t *testing.T) {
	creator := &fakeCreator{}
	c, tracker := newController(t, creator, WithDetails(models.ProjectDetails{Name: "n", ClientAlias: "c"}))
	doc := readyUpload(t, tracker, models.DocTranscription)
	_, _ = c.Next()
	_, _ = c.Next()

	// The upload disappears while the project is being created.
	creator.during = func() { require.NoError(t, tracker.Remove(doc.ID)) }

	wf, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProjectProcessing, wf.Status())
	require.Len(t, creator.ready, 1)
	assert.Equal(t, doc.ID, creator.ready[0].ID)
}

func TestFinalizeCreatorFailureCanBeRetried(t *testing.T) {
	creator := &fakeCreator{err: errors.New("firestore unavailable")}
	c, tracker := newController(t, creator, WithDetails(models.ProjectDetails{Name: "n", ClientAlias: "c"}))
	readyUpload(t, tracker, models.DocTranscription)
	_, _ = c.Next()
	_, _ = c.Next()

	_, err := c.Finalize(context.Background())
	require.Error(t, err)

	creator.err = nil
	wf, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProjectProcessing, wf.Status())
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "details", StepDetails.String())
	assert.Equal(t, "review", StepReview.String())
	assert.Equal(t, "step(9)", Step(9).String())
}
