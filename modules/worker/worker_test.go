package worker

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inviteflow/core/errors"
	campaignService "inviteflow/modules/campaign/service"
)

type stubProcessor struct {
	report *campaignService.ProcessReport
	appErr *errors.AppError
	calls  []uuid.UUID
}

func (s *stubProcessor) ProcessCampaign(_ context.Context, campaignID uuid.UUID) (*campaignService.ProcessReport, *errors.AppError) {
	s.calls = append(s.calls, campaignID)
	if s.appErr != nil {
		return nil, s.appErr
	}
	return s.report, nil
}

func TestNewCampaignTaskRoundTrip(t *testing.T) {
	campaignID := uuid.New()

	task, err := NewCampaignTask(campaignID)
	require.NoError(t, err)
	assert.Equal(t, TypeCampaignProcess, task.Type())

	parsed, err := parseCampaignPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, campaignID, parsed)
}

func TestParseCampaignPayloadRejectsGarbage(t *testing.T) {
	_, err := parseCampaignPayload([]byte("not json"))
	assert.Error(t, err)
}

func TestParseCampaignPayloadRejectsMissingID(t *testing.T) {
	_, err := parseCampaignPayload([]byte(`{}`))
	assert.Error(t, err)
}

func TestHandleCampaignProcessRunsProcessor(t *testing.T) {
	campaignID := uuid.New()
	processor := &stubProcessor{report: &campaignService.ProcessReport{Processed: 2, Sent: 2}}
	handler := handleCampaignProcess(processor)

	task, err := NewCampaignTask(campaignID)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []uuid.UUID{campaignID}, processor.calls)
}

func TestHandleCampaignProcessBadPayloadNotRetried(t *testing.T) {
	processor := &stubProcessor{}
	handler := handleCampaignProcess(processor)

	err := handler(context.Background(), asynq.NewTask(TypeCampaignProcess, []byte("not json")))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, asynq.SkipRetry))
	assert.Empty(t, processor.calls)
}

func TestHandleCampaignProcessConfigErrorNotRetried(t *testing.T) {
	processor := &stubProcessor{
		appErr: errors.NewAppError(errors.ErrInvalidConfiguration, "minimum lead time exceeds maximum", nil),
	}
	handler := handleCampaignProcess(processor)

	task, err := NewCampaignTask(uuid.New())
	require.NoError(t, err)

	hErr := handler(context.Background(), task)
	require.Error(t, hErr)
	assert.True(t, stderrors.Is(hErr, asynq.SkipRetry))
}

func TestHandleCampaignProcessUnknownCampaignNotRetried(t *testing.T) {
	processor := &stubProcessor{
		appErr: errors.NewAppError(errors.ErrNotFound, "Campaign not found", nil),
	}
	handler := handleCampaignProcess(processor)

	task, err := NewCampaignTask(uuid.New())
	require.NoError(t, err)

	hErr := handler(context.Background(), task)
	require.Error(t, hErr)
	assert.True(t, stderrors.Is(hErr, asynq.SkipRetry))
}

func TestHandleCampaignProcessInternalErrorRetried(t *testing.T) {
	processor := &stubProcessor{
		appErr: errors.NewAppError(errors.ErrInternalServer, "database unavailable", nil),
	}
	handler := handleCampaignProcess(processor)

	task, err := NewCampaignTask(uuid.New())
	require.NoError(t, err)

	hErr := handler(context.Background(), task)
	require.Error(t, hErr)
	assert.False(t, stderrors.Is(hErr, asynq.SkipRetry))
}
