// Package searchindex installs and verifies the index template of the search cluster.
package searchindex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	json "github.com/goccy/go-json"
)

type Config struct {
	Addresses    []string      `yaml:"addresses"`
	Username     string        `yaml:"username,omitempty"`
	Password     string        `yaml:"password,omitempty"`
	TemplateName string        `yaml:"template_name"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Addresses:    []string{"http://127.0.0.1:9200"},
		TemplateName: "watchad-events",
		Timeout:      10 * time.Second,
	}
}

type Client struct {
	config   Config
	es       *elasticsearch.Client
	expected IndexTemplate
	body     []byte
	logger   logging.Logger
}

func NewClient(config Config, logger logging.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	})
	if err != nil {
		return nil, errors.NewConfigurationError("invalid search index configuration", err)
	}

	expected, body, err := DefaultTemplate()
	if err != nil {
		return nil, errors.NewInternalError("embedded index template is malformed", err)
	}

	return &Client{
		config:   config,
		es:       es,
		expected: expected,
		body:     body,
		logger:   logger,
	}, nil
}

// TemplateInstalled fetches the named template and compares it with the embedded one.
func (c *Client) TemplateInstalled(ctx context.Context) (bool, error) {
	installed, found, err := c.fetchTemplate(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		c.logger.Warnf("Index template not found, name: %s", c.config.TemplateName)
		return false, nil
	}

	ok, reason := SchemaMatches(c.expected, installed)
	if !ok {
		c.logger.Warnf("Index template does not match, name: %s, reason: %s", c.config.TemplateName, reason)
	}
	return ok, nil
}

// EnsureTemplate installs the template unless a matching one is already present.
func (c *Client) EnsureTemplate(ctx context.Context) error {
	installed, err := c.TemplateInstalled(ctx)
	if err != nil {
		return err
	}
	if installed {
		c.logger.Infof("Index template already installed, name: %s", c.config.TemplateName)
		return nil
	}

	res, err := c.es.Indices.PutIndexTemplate(
		c.config.TemplateName,
		bytes.NewReader(c.body),
		c.es.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return errors.NewNetworkError("failed to put index template", err).WithContext("template", c.config.TemplateName)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index template rejected", res).WithContext("template", c.config.TemplateName)
	}

	c.logger.Infof("Index template installed, name: %s, patterns: %v", c.config.TemplateName, c.expected.IndexPatterns)
	return nil
}

type getTemplateResponse struct {
	IndexTemplates []struct {
		Name          string        `json:"name"`
		IndexTemplate IndexTemplate `json:"index_template"`
	} `json:"index_templates"`
}

func (c *Client) fetchTemplate(ctx context.Context) (IndexTemplate, bool, error) {
	res, err := c.es.Indices.GetIndexTemplate(
		c.es.Indices.GetIndexTemplate.WithName(c.config.TemplateName),
		c.es.Indices.GetIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return IndexTemplate{}, false, errors.NewNetworkError("failed to get index template", err).WithContext("template", c.config.TemplateName)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return IndexTemplate{}, false, nil
	}
	if res.IsError() {
		return IndexTemplate{}, false, responseError("index template lookup failed", res)
	}

	var payload getTemplateResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return IndexTemplate{}, false, errors.NewIOError("failed to decode index template", err)
	}
	for _, entry := range payload.IndexTemplates {
		if entry.Name == c.config.TemplateName {
			return entry.IndexTemplate, true, nil
		}
	}
	return IndexTemplate{}, false, nil
}

func responseError(message string, res *esapi.Response) *errors.DomainError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return errors.NewNetworkError(fmt.Sprintf("%s: HTTP %d", message, res.StatusCode), nil).
		WithContext("status", res.StatusCode).
		WithContext("body", string(body))
}
