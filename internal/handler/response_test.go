package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
)

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	capacity := 2

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("service/enrollment: loading course c1: %w", apperror.NotFound("course", "c1")),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "full carries seats",
			err:        apperror.CapacityExceeded(model.NewSeats(2, &capacity)),
			wantStatus: http.StatusConflict,
			wantType:   TypeFull,
		},
		{
			name:        "plain error is a generic server error",
			err:         errors.New("sqlite: disk I/O error"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    TypeServerError,
			wantMessage: "an internal error occurred",
		},
		{
			// What mutateUser returns once every save attempt lost its race.
			name:        "exhausted version retries are a server error",
			err:         fmt.Errorf("saving user u1 after 3 attempts: %v", apperror.Conflict("user", "u1")),
			wantStatus:  http.StatusInternalServerError,
			wantType:    TypeServerError,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body["type"])
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
			}
			if tt.wantType == TypeFull {
				assert.Equal(t, float64(0), body["seatsAvailable"])
			}
		})
	}
}
