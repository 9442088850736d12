package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	finalizerInstance *services.UploadFinalizerFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by google.cloud.storage.object.v1.finalized on the intake bucket.
	functions.CloudEvent("FinalizeUpload", finalizeUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// finalizeUpload is the Cloud Function entry point.
func finalizeUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		finalizerInstance, initErr = services.NewUploadFinalizer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning an error marks the invocation as failed so the event is retried.
	return finalizerInstance.Process(ctx, gcsEvent)
}
