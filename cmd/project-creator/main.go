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
	creatorInstance *services.ProjectCreatorFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleCreateProject" is the entry point name configured in GCP.
	functions.HTTP("HandleCreateProject", handleCreateProject)
}

// main is required by the Go Functions Framework.
func main() {}

func handleCreateProject(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		creatorInstance, initErr = services.NewProjectCreator(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := creatorInstance.Process(r.Context(), &req)
	if err != nil {
		// The specific error is already logged inside the Process method.
		services.WriteError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, res)
}
