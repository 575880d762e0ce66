package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// RESTCatalog is a client for the REST catalog protocol.
type RESTCatalog struct {
	name      string
	uri       string
	warehouse string
	client    *http.Client
	token     string
}

// RESTCatalogOption configures a REST catalog.
type RESTCatalogOption func(*RESTCatalog)

// WithName sets the catalog name.
func WithName(name string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.name = name
	}
}

// WithWarehouse sets the warehouse location.
func WithWarehouse(warehouse string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.warehouse = warehouse
	}
}

// WithToken sets the bearer token for authentication.
func WithToken(token string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.client = client
	}
}

// NewRESTCatalog creates a new REST catalog client.
func NewRESTCatalog(uri string, opts ...RESTCatalogOption) (*RESTCatalog, error) {
	if uri == "" {
		return nil, fmt.Errorf("REST catalog requires a URI")
	}

	c := &RESTCatalog{
		name:   "rest",
		uri:    strings.TrimSuffix(uri, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name returns the catalog name.
func (c *RESTCatalog) Name() string {
	return c.name
}

func (c *RESTCatalog) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.uri+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.warehouse != "" {
		q := req.URL.Query()
		q.Set("warehouse", c.warehouse)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// errorResponse is the error body returned by the server.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// mapError turns an error response into one of the catalog errors so callers
// can match it with errors.Is.
func mapError(status int, body []byte, target string) error {
	var errResp errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	typ := errResp.Error.Type

	switch {
	case strings.Contains(typ, "NoSuchNamespace"):
		return fmt.Errorf("%w: %s", ErrNoSuchNamespace, msg)
	case strings.Contains(typ, "NoSuchTable"), status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNoSuchTable, msg)
	case strings.Contains(typ, "NamespaceNotEmpty"):
		return fmt.Errorf("%w: %s", ErrNamespaceNotEmpty, msg)
	case strings.Contains(typ, "AlreadyExists") && strings.Contains(typ, "Namespace"):
		return fmt.Errorf("%w: %s", ErrNamespaceAlreadyExists, msg)
	case strings.Contains(typ, "AlreadyExists"):
		return fmt.Errorf("%w: %s", ErrTableAlreadyExists, msg)
	case strings.Contains(typ, "CommitFailed"), status == http.StatusConflict:
		return &CommitConflictError{Table: target, Cause: fmt.Errorf("%s", msg)}
	}
	return fmt.Errorf("REST API error: status %d: %s", status, msg)
}

func parseResponse[T any](resp *http.Response, target string, v *T) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return mapError(resp.StatusCode, body, target)
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// namespacePath returns the API path for a namespace. Multi-level
// namespaces are joined with the unit separator.
func namespacePath(ns Namespace) string {
	return "/v1/namespaces/" + url.PathEscape(strings.Join(ns, "\x1f"))
}

func tablePath(id TableIdentifier) string {
	return namespacePath(id.Namespace) + "/tables/" + url.PathEscape(id.Name)
}

// headExists issues a HEAD request and maps 404 to false.
func (c *RESTCatalog) headExists(ctx context.Context, path string) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodHead, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return true, nil
}

// ListNamespaces lists all namespaces.
func (c *RESTCatalog) ListNamespaces(ctx context.Context) ([]Namespace, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/namespaces", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Namespaces [][]string `json:"namespaces"`
	}
	if err := parseResponse(resp, "", &result); err != nil {
		return nil, err
	}

	namespaces := make([]Namespace, len(result.Namespaces))
	for i, ns := range result.Namespaces {
		namespaces[i] = Namespace(ns)
	}
	return namespaces, nil
}

// CreateNamespace creates a new namespace.
func (c *RESTCatalog) CreateNamespace(ctx context.Context, namespace Namespace, properties map[string]string) error {
	body := map[string]any{
		"namespace":  namespace,
		"properties": properties,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/namespaces", body)
	if err != nil {
		return err
	}
	return parseResponse(resp, namespace.String(), (*any)(nil))
}

// DropNamespace drops a namespace.
func (c *RESTCatalog) DropNamespace(ctx context.Context, namespace Namespace) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, namespacePath(namespace), nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return fmt.Errorf("%w: %s", ErrNoSuchNamespace, namespace)
	}
	return parseResponse(resp, namespace.String(), (*any)(nil))
}

// NamespaceExists checks if a namespace exists.
func (c *RESTCatalog) NamespaceExists(ctx context.Context, namespace Namespace) (bool, error) {
	return c.headExists(ctx, namespacePath(namespace))
}

// ListTables lists all tables in a namespace.
func (c *RESTCatalog) ListTables(ctx context.Context, namespace Namespace) ([]TableIdentifier, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, namespacePath(namespace)+"/tables", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Identifiers []struct {
			Namespace []string `json:"namespace"`
			Name      string   `json:"name"`
		} `json:"identifiers"`
	}
	if err := parseResponse(resp, namespace.String(), &result); err != nil {
		return nil, err
	}

	tables := make([]TableIdentifier, len(result.Identifiers))
	for i, id := range result.Identifiers {
		tables[i] = TableIdentifier{
			Namespace: Namespace(id.Namespace),
			Name:      id.Name,
		}
	}
	return tables, nil
}

// loadTableResult is the response body of load, create and commit.
type loadTableResult struct {
	MetadataLocation string              `json:"metadata-location"`
	Metadata         *spec.TableMetadata `json:"metadata"`
}

// CreateTable creates a new table.
func (c *RESTCatalog) CreateTable(ctx context.Context, identifier TableIdentifier, schema *spec.Schema, opts ...CreateTableOption) (*spec.TableMetadata, error) {
	cfg := &CreateTableConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	body := map[string]any{
		"name":   identifier.Name,
		"schema": schema,
	}
	if cfg.Location != "" {
		body["location"] = cfg.Location
	}
	if len(cfg.Properties) > 0 {
		body["properties"] = cfg.Properties
	}

	resp, err := c.doRequest(ctx, http.MethodPost, namespacePath(identifier.Namespace)+"/tables", body)
	if err != nil {
		return nil, err
	}

	var result loadTableResult
	if err := parseResponse(resp, identifier.String(), &result); err != nil {
		return nil, err
	}
	return result.Metadata, nil
}

// LoadTable loads a table's metadata.
func (c *RESTCatalog) LoadTable(ctx context.Context, identifier TableIdentifier) (*spec.TableMetadata, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, tablePath(identifier), nil)
	if err != nil {
		return nil, err
	}

	var result loadTableResult
	if err := parseResponse(resp, identifier.String(), &result); err != nil {
		return nil, err
	}
	if result.Metadata == nil {
		return nil, fmt.Errorf("load table %s: response has no metadata", identifier)
	}
	return result.Metadata, nil
}

// TableExists checks if a table exists.
func (c *RESTCatalog) TableExists(ctx context.Context, identifier TableIdentifier) (bool, error) {
	return c.headExists(ctx, tablePath(identifier))
}

// DropTable drops a table.
func (c *RESTCatalog) DropTable(ctx context.Context, identifier TableIdentifier, purge bool) error {
	path := tablePath(identifier)
	if purge {
		path += "?purgeRequested=true"
	}

	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return parseResponse(resp, identifier.String(), (*any)(nil))
}

// CommitTable commits changes to a table. The server checks the
// requirements; a 409 response is returned as a *CommitConflictError.
func (c *RESTCatalog) CommitTable(ctx context.Context, identifier TableIdentifier, requirements []TableRequirement, updates []TableUpdate) (*spec.TableMetadata, error) {
	body := map[string]any{
		"identifier": map[string]any{
			"namespace": identifier.Namespace,
			"name":      identifier.Name,
		},
		"requirements": requirements,
		"updates":      updates,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, tablePath(identifier), body)
	if err != nil {
		return nil, err
	}

	var result loadTableResult
	if err := parseResponse(resp, identifier.String(), &result); err != nil {
		return nil, err
	}
	return result.Metadata, nil
}
