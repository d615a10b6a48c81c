/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/crudkit/repository"
	"github.com/tomoncle/crudkit/utils"
)

var (
	// ErrUnauthorized marks a request without valid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks a request the caller may not perform.
	ErrForbidden = errors.New("forbidden")
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var errorLogger = utils.NewLogger("HTTP")

// StatusOf maps an error raised while serving a request to its HTTP status
// and the detail sent back to the client.
func StatusOf(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case repository.IsNotFound(err):
		return http.StatusNotFound, "Not found"
	case repository.IsConstraintViolation(err), repository.IsMultipleResults(err):
		return http.StatusConflict, "Conflict"
	case repository.IsPayloadError(err):
		return http.StatusBadRequest, "Bad request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// AbortWithError stops the handler chain and replies with the status mapped
// from err. Server errors are logged, client errors are not.
func AbortWithError(c *gin.Context, err error) {
	status, detail := StatusOf(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		errorLogger.WithError(err).WithField(utils.FieldPath, c.Request.URL.Path).Error("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail})
}
