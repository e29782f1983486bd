package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/overlay"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
)

var (
	discoverCapability string
	discoverAll        bool
)

var agentsCmd = &cobra.Command{
	Use:     "agents",
	GroupID: GroupInfo,
	Short:   "Inspect the capability catalogue and active agents",
}

var agentsDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List capabilities and whether each has an instruction template",
	RunE:  runAgentsDiscover,
}

func init() {
	agentsDiscoverCmd.Flags().StringVar(&discoverCapability, "capability", "", "limit to one capability")
	agentsDiscoverCmd.Flags().BoolVar(&discoverAll, "all", false, "also list every currently active session")
	agentsCmd.AddCommand(agentsDiscoverCmd)
	rootCmd.AddCommand(agentsCmd)
}

type capabilityInfo struct {
	Capability  session.Capability `json:"capability"`
	HasTemplate bool               `json:"hasTemplate"`
	ActiveCount int                `json:"activeCount"`
}

func runAgentsDiscover(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	active, err := sessions.GetActive(cmd.Context())
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, s := range active {
		counts[s.Capability]++
	}

	caps := session.Capabilities
	if discoverCapability != "" {
		caps = []session.Capability{session.Capability(discoverCapability)}
	}

	var infos []capabilityInfo
	for _, c := range caps {
		doc, err := overlay.LoadCapabilityDoc(root, c)
		if err != nil {
			return err
		}
		infos = append(infos, capabilityInfo{
			Capability:  c,
			HasTemplate: doc != "",
			ActiveCount: counts[string(c)],
		})
	}

	if jsonOutput {
		out := map[string]interface{}{"capabilities": infos}
		if discoverAll {
			out["active"] = active
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}

	for _, i := range infos {
		fmt.Printf("%s\ttemplate=%v\tactive=%d\n", i.Capability, i.HasTemplate, i.ActiveCount)
	}
	if discoverAll {
		fmt.Println("---")
		for _, s := range active {
			fmt.Printf("%s\t%s\t%s\n", s.AgentName, s.Capability, s.State)
		}
	}
	return nil
}
