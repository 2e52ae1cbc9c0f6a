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

type researchReq struct {
	RepoURL string `json:"repoUrl"`
}

// Research handles POST /v1/research: authenticate, enforce quota,
// fetch the target repository and produce a one-shot analysis
// report. Authentication and quota failures short-circuit before any
// GitHub or LLM traffic; a provider failure after the quota
// committed degrades into a placeholder payload instead of failing.
func (h *APIHandler) Research(c echo.Context) error {
	var req researchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "repoUrl is required"})
	}
	owner, repo, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "repoUrl must be a github repository url"})
	}

	p, err := h.authenticate(c, model.CapabilityResearch)
	if err != nil {
		return authError(c, err)
	}

	enfCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	dec, err := h.Enforcer.Enforce(enfCtx, p, model.CapabilityResearch)
	cancel()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "quota check failed"})
	}
	if !dec.Allowed {
		return quotaDenied(c, dec)
	}

	// Quota committed; external calls happen from here on.
	rc, err := h.buildRepoContext(c.Request().Context(), owner, repo)
	if err != nil {
		if errors.Is(err, github.ErrRepoNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "repository not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "failed to fetch repository"})
	}

	report, err := h.Analyzer.Analyze(c.Request().Context(), rc)
	if err != nil {
		log.Printf("WARN: research: analysis degraded for %s/%s: %v", owner, repo, err)
		report = llm.Report{Content: degradedAnalysisNotice}
	}

	summary := fmt.Sprintf("repo=%s/%s request_id=%s", owner, repo, middleware.GetRequestID(c))
	h.recordUsage(c, p, model.CapabilityResearch, dec, summary)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"repository": rc.Info,
			"report":     report,
			"usage":      usagePayload(dec),
		},
	})
}

// buildRepoContext gathers the metadata, tree and a bounded set of
// representative files for the prompt.
func (h *APIHandler) buildRepoContext(ctx context.Context, owner, repo string) (llm.RepoContext, error) {
	info, err := h.Fetcher.Fetch(ctx, owner, repo)
	if err != nil {
		return llm.RepoContext{}, err
	}
	tree, err := h.Fetcher.ListFiles(ctx, owner, repo, info.DefaultBranch)
	if err != nil {
		return llm.RepoContext{}, err
	}
	files, err := h.Fetcher.ReadFiles(ctx, owner, repo, info.DefaultBranch, pickImportantFiles(tree))
	if err != nil {
		log.Printf("WARN: research: partial file fetch for %s/%s: %v", owner, repo, err)
	}
	return llm.RepoContext{Info: info, Tree: tree, Files: files}, nil
}

// pickImportantFiles selects a bounded set of paths that anchor an
// analysis: manifests and readmes first, then shallow source files.
func pickImportantFiles(tree []string) []string {
	const maxFiles = 12
	anchors := map[string]bool{
		"readme.md": true, "go.mod": true, "package.json": true,
		"cargo.toml": true, "pyproject.toml": true, "requirements.txt": true,
		"dockerfile": true, "makefile": true, "main.go": true,
	}
	var picked []string
	for _, p := range tree {
		if anchors[strings.ToLower(p)] {
			picked = append(picked, p)
		}
	}
	for _, p := range tree {
		if len(picked) >= maxFiles {
			break
		}
		// Shallow source files give the most architectural signal
		// per token.
		if strings.Count(p, "/") <= 1 && isSourcePath(p) && !contains(picked, p) {
			picked = append(picked, p)
		}
	}
	return picked
}

func isSourcePath(p string) bool {
	for _, ext := range []string{".go", ".ts", ".js", ".py", ".rs", ".java", ".rb", ".c", ".cpp"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
