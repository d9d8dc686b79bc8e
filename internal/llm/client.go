package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"contact-harvester/internal/entity"
)

// ErrSchemaViolation is returned when the inference service replies with
// content that does not parse into the expected contact schema.
var ErrSchemaViolation = errors.New("schema validation failed")

// notFound is the sentinel the model is instructed to return when no
// candidate looks like the official homepage.
const notFound = "NOT_FOUND"

// Client talks to an OpenAI-compatible chat completion endpoint (Groq,
// OpenAI, or any local server exposing the same API).
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// ConfirmOfficialSite asks the model to pick the official homepage among
// the candidates. An empty return value means none was confirmed.
func (c *Client) ConfirmOfficialSite(ctx context.Context, query string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	list, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(`I am looking for the official homepage of %q.
Here are the search results:
%s

Return ONLY the URL that is most likely the official homepage.
If none look correct, return %q.
Do not output any explanation.`, query, list, notFound)

	content, err := c.complete(ctx,
		"You are a helpful assistant that identifies official company websites.",
		prompt, nil)
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if strings.Contains(content, notFound) {
		return "", nil
	}
	// the model occasionally answers with prose instead of a bare URL;
	// treat that the same as no confirmation
	u, perr := url.Parse(content)
	if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil
	}
	return content, nil
}

// ExtractContacts asks the model for a JSON contact mapping over the
// combined page text and validates the response shape.
func (c *Client) ExtractContacts(ctx context.Context, text string) (*entity.ContactInfo, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty input text", ErrSchemaViolation)
	}

	prompt := fmt.Sprintf(`Extract contact information for the company from the following text.

Text Content (Truncated):
%s

Return a valid JSON object with the following keys:
- "Phone": the phone number (string)
- "Email": the email address (string)
- "Address": the full physical address (string)
- "DeptContacts": an object of specific department contacts if available (e.g. {"Sales": "123-456"})

If a field is not found, use an empty string or null.
Ensure the output is strictly valid JSON.`, text)

	content, err := c.complete(ctx,
		"You are a data extraction assistant. Output valid JSON only.",
		prompt,
		&openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject})
	if err != nil {
		return nil, err
	}

	info, err := parseContactInfo(content)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ExtractFallbackEmail runs the targeted second pass over search snippets
// when the primary extraction found no email. The returned value is a copy
// of current with the email filled in when the model finds one.
func (c *Client) ExtractFallbackEmail(ctx context.Context, snippets string, current *entity.ContactInfo) (*entity.ContactInfo, error) {
	prompt := fmt.Sprintf(`The following are search result snippets. Find the company's contact email address in them.

Snippets:
%s

Return a valid JSON object with a single key "Email" (string).
If no email is present, use an empty string.`, snippets)

	content, err := c.complete(ctx,
		"You are a data extraction assistant. Output valid JSON only.",
		prompt,
		&openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Email any `json:"Email"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	updated := *current
	if email := asString(raw.Email); email != "" {
		updated.Email = email
	}
	return &updated, nil
}

func (c *Client) complete(ctx context.Context, system, user string, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func parseContactInfo(content string) (*entity.ContactInfo, error) {
	var raw struct {
		Phone        any            `json:"Phone"`
		Email        any            `json:"Email"`
		Address      any            `json:"Address"`
		DeptContacts map[string]any `json:"DeptContacts"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	return &entity.ContactInfo{
		Phone:        asString(raw.Phone),
		Email:        asString(raw.Email),
		Address:      asString(raw.Address),
		DeptContacts: raw.DeptContacts,
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
