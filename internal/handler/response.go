package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
	"mmp-tracker/internal/util"
	"mmp-tracker/pkg/apierror"
)

type sentinelMapping struct {
	err     error
	status  int
	code    string
	message string
}

var sentinelErrors = []sentinelMapping{
	{model.ErrMMPNotFound, http.StatusNotFound, "NOT_FOUND", "MMP file not found"},
	{model.ErrSiteNotFound, http.StatusNotFound, "NOT_FOUND", "Site entry not found"},
	{model.ErrPermitNotFound, http.StatusNotFound, "NOT_FOUND", "Permit not found"},
	{model.ErrBudgetNotFound, http.StatusNotFound, "NOT_FOUND", "Budget not found"},
	{model.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{model.ErrUserAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "User already exists"},
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials"},
	{model.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{model.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{model.ErrTokenNotFound, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token"},
	{model.ErrTokenExpired, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token"},
	{model.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST", "Invalid input"},
}

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if mapped, ok := lookupSentinel(err); ok {
		status = mapped.status
		body.Code = mapped.code
		body.Message = mapped.message
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func lookupSentinel(err error) (sentinelMapping, bool) {
	for _, m := range sentinelErrors {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return sentinelMapping{}, false
}

// writeMutation reports writes that only reached the local mirror with a warning in meta.
func writeMutation(w http.ResponseWriter, status int, m model.MMPMutation) {
	if m.Persisted {
		writeSuccess(w, status, m, nil)
		return
	}
	writeSuccess(w, status, m, &model.Meta{Warning: "saved locally; database write failed and will be retried on the next change"})
}

func writeExport(w http.ResponseWriter, res service.ExportResult) {
	w.Header().Set("Content-Type", res.ContentType)
	name, err := util.CleanFileName(res.Filename)
	if err != nil {
		name = "export"
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("X-Export-Count", strconv.Itoa(res.Count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// decodeJSON reads a JSON body. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge)
		}
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
