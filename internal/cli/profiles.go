package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/futures"
	"fno-signals/internal/analysis/oichain"
	"fno-signals/internal/analysis/pcr"
	"fno-signals/internal/analysis/technical"
	"fno-signals/internal/config"
)

// addProfileCommands adds the threshold profile inspection command.
func addProfileCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newProfilesCmd(app))
}

func newProfilesCmd(app *App) *cobra.Command {
	var family, mode, class string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Show the resolved detector threshold profiles",
		Long: `Show every detector family's threshold profile per mode and instrument
class, after thresholds.toml overrides. The text output uses the same
section names thresholds.toml accepts.`,
		Example: `  signals profiles
  signals profiles --family oichain --mode intraday --class index`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sections, err := profileSections(app.Config.Thresholds, family, mode, class)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				out := make(map[string]map[string]interface{}, len(sections))
				for _, s := range sections {
					if out[s.family] == nil {
						out[s.family] = make(map[string]interface{})
					}
					out[s.family][s.key.String()] = s.values
				}
				return output.JSON(out)
			}

			for i, s := range sections {
				if i > 0 {
					output.Println()
				}
				output.Bold("[%s.%s]", s.family, s.key)
				keys := make([]string, 0, len(s.values))
				for k := range s.values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					output.Printf("%s = %v\n", k, s.values[k])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "only this family: technical, oichain, pcr or futures")
	cmd.Flags().StringVar(&mode, "mode", "", "only this mode: intraday or positional")
	cmd.Flags().StringVar(&class, "class", "", "only this class: stock or index")

	return cmd
}

type profileSection struct {
	family string
	key    analysis.ProfileKey
	values map[string]interface{}
}

// profileSections flattens the selected profiles into ordered sections.
func profileSections(t config.Thresholds, family, mode, class string) ([]profileSection, error) {
	families := []struct {
		name     string
		profiles func(analysis.ProfileKey) interface{}
	}{
		{technical.SetName, func(k analysis.ProfileKey) interface{} { return t.Technical[k] }},
		{oichain.SetName, func(k analysis.ProfileKey) interface{} { return t.OIChain[k] }},
		{pcr.SetName, func(k analysis.ProfileKey) interface{} { return t.PCR[k] }},
		{futures.SetName, func(k analysis.ProfileKey) interface{} { return t.Futures[k] }},
	}

	family = strings.ToLower(strings.TrimSpace(family))
	if family != "" {
		known := false
		for _, f := range families {
			known = known || f.name == family
		}
		if !known {
			return nil, fmt.Errorf("unknown family %q", family)
		}
	}

	var wantMode analysis.Mode
	if mode != "" {
		m, err := analysis.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		wantMode = m
	}
	var wantClass analysis.InstrumentClass
	if class != "" {
		c, err := analysis.ParseClass(class)
		if err != nil {
			return nil, err
		}
		wantClass = c
	}

	var sections []profileSection
	for _, f := range families {
		if family != "" && f.name != family {
			continue
		}
		for _, key := range analysis.AllProfileKeys() {
			if (wantMode != "" && key.Mode != wantMode) || (wantClass != "" && key.Class != wantClass) {
				continue
			}
			values, err := flatten(f.profiles(key))
			if err != nil {
				return nil, err
			}
			sections = append(sections, profileSection{family: f.name, key: key, values: values})
		}
	}
	return sections, nil
}

func flatten(profile interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
