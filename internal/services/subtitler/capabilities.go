package subtitler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"subpilot/internal/language"
	"subpilot/internal/logging"
	"subpilot/internal/services"
)

// ModelInfo describes one Whisper model offered by the service.
type ModelInfo struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Speed    string `json:"speed"`
	Accuracy string `json:"accuracy"`
	VRAM     string `json:"vram"`
}

// Capabilities is the /api/system-info document.
type Capabilities struct {
	CUDAAvailable      bool                 `json:"cuda_available"`
	Device             string               `json:"device"`
	GPUName            string               `json:"gpu_name,omitempty"`
	GPUMemory          string               `json:"gpu_memory,omitempty"`
	Models             map[string]ModelInfo `json:"whisper_models"`
	SupportedLanguages map[string]string    `json:"supported_languages"`
}

// Empty reports whether no options were learned.
func (c Capabilities) Empty() bool {
	return len(c.Models) == 0 && len(c.SupportedLanguages) == 0
}

// ModelNames returns model keys in the service's size order, unknown names last.
func (c Capabilities) ModelNames() []string {
	names := lo.Keys(c.Models)
	slices.SortFunc(names, func(a, b string) int {
		ia, ib := modelRank(a), modelRank(b)
		if ia != ib {
			return ia - ib
		}
		return strings.Compare(a, b)
	})
	return names
}

// LanguageCodes returns language codes sorted, with "auto" first when present.
func (c Capabilities) LanguageCodes() []string {
	codes := lo.Keys(c.SupportedLanguages)
	slices.SortFunc(codes, func(a, b string) int {
		switch {
		case a == "auto":
			return -1
		case b == "auto":
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return codes
}

// Check rejects normalized options naming a model or language the service
// does not offer. An empty catalogue accepts anything.
func (c Capabilities) Check(opts SubmissionOptions) error {
	if len(c.Models) > 0 {
		if _, ok := c.Models[opts.Model]; !ok {
			return services.Wrap(services.ErrValidation, "subtitler", "options",
				fmt.Sprintf("model %q is not offered by the service (available: %s)", opts.Model, strings.Join(c.ModelNames(), ", ")), nil)
		}
	}
	if len(c.SupportedLanguages) > 0 && opts.Language != language.Auto {
		if _, ok := c.SupportedLanguages[opts.Language]; !ok {
			return services.Wrap(services.ErrValidation, "subtitler", "options",
				fmt.Sprintf("language %q is not supported by the service", opts.Language), nil)
		}
	}
	return nil
}

func modelRank(name string) int {
	if i := slices.Index(Models, name); i >= 0 {
		return i
	}
	return len(Models)
}

// Capabilities fetches the service's model and language catalogue.
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	if err := c.getJSON(ctx, "system info", &caps, "api", "system-info"); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

// CapabilitiesOrEmpty degrades to an empty catalogue when the service cannot
// be queried.
func (c *Client) CapabilitiesOrEmpty(ctx context.Context, logger *slog.Logger) Capabilities {
	caps, err := c.Capabilities(ctx)
	if err == nil {
		return caps
	}
	if logger == nil {
		logger = c.logger
	}
	logging.WarnWithContext(logger, "capabilities unavailable", "capabilities_unavailable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check service.base_url and that the service is running"),
		logging.String(logging.FieldImpact, "model and language choices are not validated against the service"),
	)
	return Capabilities{}
}
