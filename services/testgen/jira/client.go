// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jira fetches feature descriptions from, and files test issues in,
// a Jira instance.
package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/observability"
)

const (
	// DefaultCriteriaField is the custom field checked for acceptance
	// criteria when none is configured.
	DefaultCriteriaField = "customfield_10100"

	// DefaultTestIssueType is the issue type of created test issues.
	DefaultTestIssueType = "Test"

	defaultPriority = "Medium"
	defaultTimeout  = 30 * time.Second
)

// Sentinel errors for the jira package.
var (
	// ErrIssueFetchFailed wraps every failure to read an issue.
	ErrIssueFetchFailed = errors.New("failed to fetch JIRA issue")

	// ErrIssueNotFound is joined with ErrIssueFetchFailed when Jira answers 404.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrIssueCreateFailed wraps every failure to create an issue.
	ErrIssueCreateFailed = errors.New("failed to create JIRA test case")

	// ErrNotConfigured indicates no Jira URL or credentials were configured.
	ErrNotConfigured = errors.New("jira integration is not configured")
)

var tracer = otel.Tracer("aleutianqa.jira")

// Config configures Client.
type Config struct {
	URL      string
	Email    string
	APIToken string

	// CriteriaField is the custom field holding acceptance criteria.
	// Empty means DefaultCriteriaField.
	CriteriaField string

	// TestIssueType is the type of created issues. Empty means
	// DefaultTestIssueType.
	TestIssueType string

	Timeout time.Duration

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Client talks to Jira through go-jira.
//
// Thread Safety:
//
//	Client is safe for concurrent use.
type Client struct {
	jira          *gojira.Client
	criteriaField string
	testIssueType string
	metrics       *observability.Metrics
}

// NewClient creates a Jira client authenticated with an API token.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, ErrNotConfigured
	}
	if cfg.CriteriaField == "" {
		cfg.CriteriaField = DefaultCriteriaField
	}
	if cfg.TestIssueType == "" {
		cfg.TestIssueType = DefaultTestIssueType
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := gojira.BasicAuthTransport{Username: cfg.Email, Password: cfg.APIToken}
	httpClient := transport.Client()
	httpClient.Timeout = cfg.Timeout

	jc, err := gojira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	slog.Info("Initializing Jira client", "url", cfg.URL, "criteria_field", cfg.CriteriaField)
	return &Client{
		jira:          jc,
		criteriaField: cfg.CriteriaField,
		testIssueType: cfg.TestIssueType,
		metrics:       cfg.Metrics,
	}, nil
}

// FetchIssue reads an issue and extracts its acceptance criteria.
//
// # Outputs
//
//   - *datatypes.Issue: Priority defaults to "Medium", criteria are never
//     empty.
//   - error: Wraps ErrIssueFetchFailed, and also ErrIssueNotFound on 404.
func (c *Client) FetchIssue(ctx context.Context, key string) (*datatypes.Issue, error) {
	ctx, span := tracer.Start(ctx, "jira.FetchIssue")
	defer span.End()
	span.SetAttributes(attribute.String("jira.issue_key", key))

	issue, resp, err := c.jira.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		slog.Error("Error fetching JIRA issue", "issue_key", key, "error", err)
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			c.metrics.RecordIssueTracker("fetch", "not_found")
			return nil, fmt.Errorf("%w: %w: %s", ErrIssueFetchFailed, ErrIssueNotFound, key)
		}
		c.metrics.RecordIssueTracker("fetch", "error")
		return nil, fmt.Errorf("%w: %w", ErrIssueFetchFailed, err)
	}
	if issue == nil || issue.Fields == nil {
		c.metrics.RecordIssueTracker("fetch", "error")
		return nil, fmt.Errorf("%w: %s has no fields", ErrIssueFetchFailed, key)
	}
	c.metrics.RecordIssueTracker("fetch", "success")
	return c.toIssue(issue), nil
}

func (c *Client) toIssue(issue *gojira.Issue) *datatypes.Issue {
	f := issue.Fields
	out := &datatypes.Issue{
		Key:         issue.Key,
		Summary:     f.Summary,
		Description: f.Description,
		IssueType:   f.Type.Name,
		Priority:    defaultPriority,
	}
	if f.Status != nil {
		out.Status = f.Status.Name
	}
	if f.Priority != nil && f.Priority.Name != "" {
		out.Priority = f.Priority.Name
	}

	var custom any
	if f.Unknowns != nil {
		custom = f.Unknowns[c.criteriaField]
	}
	out.AcceptanceCriteria = ExtractAcceptanceCriteria(custom, f.Description)
	return out
}

// CreateTestIssue files a test issue, optionally under a parent.
//
// # Outputs
//
//   - string: Key of the new issue.
//   - error: Wraps ErrIssueCreateFailed.
func (c *Client) CreateTestIssue(ctx context.Context, req datatypes.CreateTestIssueRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "jira.CreateTestIssue")
	defer span.End()
	span.SetAttributes(attribute.String("jira.project", req.ProjectKey))

	fields := &gojira.IssueFields{
		Project:     gojira.Project{Key: req.ProjectKey},
		Summary:     req.Summary,
		Description: req.Description,
		Type:        gojira.IssueType{Name: c.testIssueType},
	}
	if req.ParentIssueKey != "" {
		fields.Parent = &gojira.Parent{Key: req.ParentIssueKey}
	}

	created, _, err := c.jira.Issue.CreateWithContext(ctx, &gojira.Issue{Fields: fields})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		slog.Error("Error creating test case in JIRA", "project", req.ProjectKey, "error", err)
		c.metrics.RecordIssueTracker("create", "error")
		return "", fmt.Errorf("%w: %w", ErrIssueCreateFailed, err)
	}
	c.metrics.RecordIssueTracker("create", "success")
	slog.Info("Created JIRA test case", "key", created.Key, "parent", req.ParentIssueKey)
	return created.Key, nil
}
