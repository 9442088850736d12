package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/services"
)

var (
	callbackInstance *services.GenerationCallbackFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleGenerationResult" is the entry point name configured in GCP.
	functions.HTTP("HandleGenerationResult", handleGenerationResult)
}

// main is required by the Go Functions Framework.
func main() {}

func handleGenerationResult(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		callbackInstance, initErr = services.NewGenerationCallback(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.GenerationResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := callbackInstance.Process(r.Context(), &req)
	if err != nil {
		// The specific error is already logged inside the Process method.
		services.WriteError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, res)
}
