package session

import (
	"fmt"
	"reflect"
	"sort"
)

// Selectors maps semantic control names to CSS selectors.
type Selectors struct {
	LoginEmail    string `yaml:"login_email"`
	LoginPassword string `yaml:"login_password"`
	LoginSubmit   string `yaml:"login_submit"`

	ProfileGate  string `yaml:"profile_gate"`
	ProfileEntry string `yaml:"profile_entry"`

	SearchButton    string `yaml:"search_button"`
	SearchInput     string `yaml:"search_input"`
	SearchResults   string `yaml:"search_results"`
	ResultItem      string `yaml:"result_item"`
	ResultThumbnail string `yaml:"result_thumbnail"`

	AudioSubtitleButton string `yaml:"audio_subtitle_button"`
	AudioTrack          string `yaml:"audio_track"`
	SubtitleTrack       string `yaml:"subtitle_track"`
}

// DefaultSelectors returns locators matching the current site markup.
func DefaultSelectors() Selectors {
	return Selectors{
		LoginEmail:    `input[name="userLoginId"]`,
		LoginPassword: `input[name="password"]`,
		LoginSubmit:   `button[type="submit"]`,

		ProfileGate:  `.list-profiles`,
		ProfileEntry: `.list-profiles .profile-link`,

		SearchButton:    `.searchTab`,
		SearchInput:     `input[data-uia="search-box-input"]`,
		SearchResults:   `.search-page`,
		ResultItem:      `.title-card a`,
		ResultThumbnail: `img`,

		AudioSubtitleButton: `button[data-uia="control-audio-subtitle"]`,
		AudioTrack:          `[data-uia="selector-audio-subtitle"] ul:nth-of-type(1) li`,
		SubtitleTrack:       `[data-uia="selector-audio-subtitle"] ul:nth-of-type(2) li`,
	}
}

// Merge returns s with every empty field taken from fallback.
func (s Selectors) Merge(fallback Selectors) Selectors {
	out := s
	ov := reflect.ValueOf(&out).Elem()
	fv := reflect.ValueOf(fallback)
	for i := 0; i < ov.NumField(); i++ {
		if ov.Field(i).String() == "" {
			ov.Field(i).SetString(fv.Field(i).String())
		}
	}
	return out
}

// Table returns the selectors keyed by their yaml names, for display.
func (s Selectors) Table() map[string]string {
	out := make(map[string]string)
	v := reflect.ValueOf(s)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		out[t.Field(i).Tag.Get("yaml")] = v.Field(i).String()
	}
	return out
}

// Validate reports every empty selector.
func (s Selectors) Validate() error {
	var missing []string
	for name, sel := range s.Table() {
		if sel == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("selectors missing: %v", missing)
}

// SelectorSource supplies the selectors in effect right now. Sources may
// change their answer between calls (hot reload).
type SelectorSource interface {
	Selectors() Selectors
}

// StaticSelectors is a SelectorSource that never changes.
type StaticSelectors Selectors

func (s StaticSelectors) Selectors() Selectors { return Selectors(s) }

// nth addresses the n-th (1-indexed) sibling matched by an item selector.
func nth(selector string, n int) string {
	return fmt.Sprintf("%s:nth-child(%d)", selector, n)
}
