package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/github"
	"github.com/unrepo/unrepo-api/internal/llm"
	"github.com/unrepo/unrepo-api/internal/middleware"
	"github.com/unrepo/unrepo-api/internal/model"
)

type chatReq struct {
	Message string        `json:"message"`
	RepoURL string        `json:"repoUrl"`
	History []llm.Message `json:"history"`
}

// Chat handles POST /v1/chat: one conversational turn, optionally
// grounded in a repository. The flow mirrors Research: credential
// and quota first, external calls only after the decision committed,
// degrade instead of failing when the provider is down.
func (h *APIHandler) Chat(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "message is required"})
	}
	var owner, repo string
	if strings.TrimSpace(req.RepoURL) != "" {
		var err error
		owner, repo, err = github.ParseRepoURL(req.RepoURL)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "repoUrl must be a github repository url"})
		}
	}

	p, err := h.authenticate(c, model.CapabilityChat)
	if err != nil {
		return authError(c, err)
	}

	enfCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	dec, err := h.Enforcer.Enforce(enfCtx, p, model.CapabilityChat)
	cancel()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "quota check failed"})
	}
	if !dec.Allowed {
		return quotaDenied(c, dec)
	}

	var rc *llm.RepoContext
	if owner != "" {
		built, err := h.buildRepoContext(c.Request().Context(), owner, repo)
		if err != nil {
			if errors.Is(err, github.ErrRepoNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "repository not found"})
			}
			// A broken grounding fetch is not worth failing the turn
			// for; answer without context.
			log.Printf("WARN: chat: repo context unavailable for %s/%s: %v", owner, repo, err)
		} else {
			rc = &built
		}
	}

	reply, err := h.Analyzer.Converse(c.Request().Context(), req.History, req.Message, rc)
	if err != nil {
		log.Printf("WARN: chat: reply degraded: %v", err)
		reply = degradedAnalysisNotice
	}

	summary := fmt.Sprintf("chat request_id=%s", middleware.GetRequestID(c))
	if owner != "" {
		summary = fmt.Sprintf("chat repo=%s/%s request_id=%s", owner, repo, middleware.GetRequestID(c))
	}
	h.recordUsage(c, p, model.CapabilityChat, dec, summary)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"reply": reply,
			"usage": usagePayload(dec),
		},
	})
}
