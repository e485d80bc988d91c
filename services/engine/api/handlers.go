// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the engine over HTTP: component registration,
// task execution, and shared-context administration.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/kodiak/services/engine/contextstore"
	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/health"
	"github.com/AleutianAI/kodiak/services/engine/orchestrator"
	"github.com/AleutianAI/kodiak/services/engine/registry"
)

// Deps carries the collaborators the handlers close over.
type Deps struct {
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Contexts     *contextstore.Store
	Monitor      *health.Monitor
	Logger       *slog.Logger

	// DefaultTTL is applied when a context creation request omits
	// ttl_seconds.
	DefaultTTL time.Duration
}

// ====== Components ======

type registerRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name" binding:"required"`
	Capabilities []string `json:"capabilities" binding:"required,min=1"`
	ProbeURL     string   `json:"probe_url"`
}

// RegisterComponent creates a registry entry. When probe_url is given
// the component gets an HTTP GET probe; any non-2xx answer counts as a
// failure.
func RegisterComponent(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		var probe datatypes.Probe
		if req.ProbeURL != "" {
			probe = httpProbe(req.ProbeURL)
		}

		if err := d.Registry.Register(req.ID, req.Name, req.Capabilities, probe); err != nil {
			if errors.Is(err, datatypes.ErrDuplicateComponent) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		d.Logger.Info("component registered", "component_id", req.ID, "name", req.Name)
		c.JSON(http.StatusCreated, gin.H{"id": req.ID})
	}
}

// ListComponents returns registry snapshots, optionally filtered by the
// capability and status query parameters.
func ListComponents(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := registry.Filter{
			Capability: c.Query("capability"),
			Status:     datatypes.ComponentStatus(c.Query("status")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			c.JSON(http.StatusBadRequest,
				gin.H{"error": fmt.Sprintf("unknown status %q", filter.Status)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"components": d.Registry.List(filter)})
	}
}

// GetComponent returns one component snapshot.
func GetComponent(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		component, err := d.Registry.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, component)
	}
}

// UnregisterComponent removes a component from the registry.
func UnregisterComponent(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := d.Registry.Unregister(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		d.Logger.Info("component unregistered", "component_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_component_id": id})
	}
}

// TriggerHealthCheck runs one probe cycle outside the regular schedule.
func TriggerHealthCheck(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Monitor.RunNow(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "cycle complete"})
	}
}

// httpProbe builds a probe that GETs url and treats non-2xx as failure.
func httpProbe(url string) datatypes.Probe {
	client := &http.Client{}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// ====== Tasks ======

type artifactRequest struct {
	Kind     string         `json:"kind" binding:"required"`
	Content  string         `json:"content" binding:"required"`
	Language string         `json:"language"`
	Metadata map[string]any `json:"metadata"`
}

type taskRequest struct {
	TaskID    string          `json:"task_id"`
	Artifact  artifactRequest `json:"artifact" binding:"required"`
	ContextID string          `json:"context_id"`
}

// ExecuteTask routes the artifact to a capable component and returns
// the orchestration result. Validation failures are HTTP 200 with
// success=false; only pre-execution faults map to error statuses.
func ExecuteTask(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.TaskID == "" {
			req.TaskID = uuid.NewString()
		}

		artifact := &datatypes.Artifact{
			Kind:     req.Artifact.Kind,
			Content:  req.Artifact.Content,
			Language: req.Artifact.Language,
			Metadata: req.Artifact.Metadata,
		}

		result, err := d.Orchestrator.Execute(c.Request.Context(), req.TaskID, artifact, req.ContextID)
		if err != nil {
			switch {
			case errors.Is(err, datatypes.ErrNoCapableComponent):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			case errors.Is(err, datatypes.ErrContextNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, datatypes.ErrContextExpired):
				c.JSON(http.StatusGone, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// TaskHistory returns recent results, newest first. The limit query
// parameter caps the count; default 50.
func TaskHistory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{"results": d.Orchestrator.History().Recent(limit)})
	}
}

// Stats returns the aggregate task counters.
func Stats(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Orchestrator.Statistics())
	}
}

// ====== Contexts ======

type createContextRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	UserID     string `json:"user_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// CreateContext allocates a shared context with the requested TTL.
func CreateContext(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createContextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ttl := d.DefaultTTL
		if req.TTLSeconds > 0 {
			ttl = time.Duration(req.TTLSeconds) * time.Second
		}

		id, err := d.Contexts.Create(req.SessionID, req.UserID, ttl)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// GetContext returns a context snapshot. The component query parameter
// restricts payloads to those written under that component's ID.
func GetContext(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			sc  *datatypes.SharedContext
			err error
		)
		if component := c.Query("component"); component != "" {
			sc, err = d.Contexts.Get(c.Param("id"), component)
		} else {
			sc, err = d.Contexts.Get(c.Param("id"))
		}
		if err != nil {
			writeContextError(c, err)
			return
		}
		c.JSON(http.StatusOK, sc)
	}
}

type putPayloadRequest struct {
	ComponentID string `json:"component_id" binding:"required"`
	Payload     any    `json:"payload" binding:"required"`
}

// PutContextPayload stores one component's payload into a context.
func PutContextPayload(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req putPayloadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := d.Contexts.Put(c.Param("id"), req.ComponentID, req.Payload); err != nil {
			writeContextError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// DeleteContext removes a context regardless of expiry state.
func DeleteContext(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := d.Contexts.Delete(id); err != nil {
			writeContextError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_context_id": id})
	}
}

func writeContextError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, datatypes.ErrContextExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, datatypes.ErrContextNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ====== Liveness ======

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
