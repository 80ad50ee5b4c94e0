package conformance

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/tailscale/hujson"
)

// Scenario is the fixture every task draws its inputs from. On disk it is
// HuJSON, so comments and trailing commas are allowed.
type Scenario struct {
	Text      string            `json:"text"`
	Texts     []string          `json:"texts"`
	Documents []models.Document `json:"documents"`
	TopN      int               `json:"top_n,omitempty"`
}

// DefaultScenario is the fixture the served runtime is smoke-tested with.
func DefaultScenario() Scenario {
	first := models.NewDocument("first sentence")
	_ = first.Set("title", "first title")

	another := models.NewDocument("another sentence")
	_ = another.Set("more", "more attributes here")

	nested := models.NewDocument("a doc with a nested metadata")
	_ = nested.Set("meta", map[string]any{"foo": "bar", "i": 999, "f": 12.34})

	return Scenario{
		Text:      "test first sentence",
		Texts:     []string{"test first sentence", "another test sentence"},
		Documents: []models.Document{first, another, nested},
	}
}

// ParseScenario decodes a HuJSON scenario.
func ParseScenario(data []byte) (Scenario, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	var s Scenario
	if err := json.Unmarshal(std, &s); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// LoadDocuments reads a HuJSON array of documents or bare strings.
func LoadDocuments(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	docs, err := models.DecodeDocuments(std)
	if err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("corpus is empty")
	}
	return docs, nil
}

func (s Scenario) Validate() error {
	var errs []error
	if s.Text == "" {
		errs = append(errs, errors.New("scenario: text is empty"))
	}
	if len(s.Texts) == 0 {
		errs = append(errs, errors.New("scenario: texts is empty"))
	}
	if len(s.Documents) == 0 {
		errs = append(errs, errors.New("scenario: documents is empty"))
	}
	if s.TopN < 0 {
		errs = append(errs, fmt.Errorf("scenario: negative top_n %d", s.TopN))
	}
	return errors.Join(errs...)
}

// TopK is the rerank depth: top_n when set, otherwise every document.
func (s Scenario) TopK() int {
	if s.TopN <= 0 || s.TopN > len(s.Documents) {
		return len(s.Documents)
	}
	return s.TopN
}
