package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

// ExecutionLauncher starts runs of the external diagram generation workflow.
type ExecutionLauncher struct {
	client *executions.Client
	parent string
}

// NewExecutionLauncher creates a Workflows Executions client bound to one workflow.
func NewExecutionLauncher(ctx context.Context, projectID, location, workflowID string) (*ExecutionLauncher, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewExecutionLauncher: projectID, location and workflowID cannot be empty")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &ExecutionLauncher{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}, nil
}

// Launch starts one execution and returns its resource name.
func (l *ExecutionLauncher) Launch(ctx context.Context, payload models.GenerationLaunchPayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: l.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := l.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

func (l *ExecutionLauncher) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
