package agent

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/barabonda/linkbrain/internal/types"
)

const (
	// GraphAgentName is the default member that queries the graph.
	GraphAgentName = "graph_agent"
	// AnalysisAgentName is the default member that works on returned data.
	AnalysisAgentName = "analysis_agent"

	ErrCodeInvalidTeam types.ErrorCode = "AGENT_INVALID_TEAM"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,47}$`)

// Spec defines one agent. It is built once at startup and not changed
// afterwards.
type Spec struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Tools        []string `yaml:"tools" json:"tools"`
	Instructions string   `yaml:"instructions" json:"instructions"`
}

// Validate checks the name and tool list.
func (s Spec) Validate() error {
	if !namePattern.MatchString(s.Name) {
		return types.NewError(ErrCodeInvalidTeam,
			fmt.Sprintf("agent name %q must start with a letter and contain only letters, digits, '_' or '-'", s.Name))
	}
	seen := make(map[string]bool, len(s.Tools))
	for _, t := range s.Tools {
		if seen[t] {
			return types.NewError(ErrCodeInvalidTeam,
				fmt.Sprintf("agent %q lists tool %q twice", s.Name, t))
		}
		seen[t] = true
	}
	return nil
}

// SupervisorSpec defines the routing agent of a team.
type SupervisorSpec struct {
	Name         string `yaml:"name" json:"name"`
	Instructions string `yaml:"instructions" json:"instructions"`
}

// Team is a supervisor and its members. Member order is the order the
// hand-off catalog is presented in.
type Team struct {
	Supervisor SupervisorSpec `yaml:"supervisor" json:"supervisor"`
	Members    []Spec         `yaml:"members" json:"members"`
}

// Validate checks that members exist and have unique names.
func (t Team) Validate() error {
	if len(t.Members) == 0 {
		return types.NewError(ErrCodeInvalidTeam, "team has no members")
	}

	var errs []error
	seen := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[m.Name] {
			errs = append(errs, types.NewError(ErrCodeInvalidTeam,
				fmt.Sprintf("duplicate member name %q", m.Name)))
		}
		seen[m.Name] = true
	}
	if t.Supervisor.Name != "" && seen[t.Supervisor.Name] {
		errs = append(errs, types.NewError(ErrCodeInvalidTeam,
			fmt.Sprintf("supervisor name %q collides with a member", t.Supervisor.Name)))
	}
	return errors.Join(errs...)
}

// Member returns the member named name.
func (t Team) Member(name string) (Spec, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Spec{}, false
}

// DefaultTeam returns the built-in two-member team. graphTools is the tool
// list for graph_agent.
func DefaultTeam(graphTools []string) Team {
	return Team{
		Supervisor: SupervisorSpec{
			Name: "supervisor",
			Instructions: "You route requests to the member best suited to answer them. " +
				"Use graph_agent for anything that needs data from the graph database and " +
				"analysis_agent to compute or summarize over data already retrieved. " +
				"Answer directly once the request is satisfied.",
		},
		Members: []Spec{
			{
				Name:        GraphAgentName,
				Description: "Queries the graph database: schema, node counts and Cypher reads or writes.",
				Tools:       graphTools,
				Instructions: "You answer questions by querying a Neo4j graph database. " +
					"Inspect the schema before writing Cypher, prefer read queries, " +
					"and report results as tables when there are several rows.",
			},
			{
				Name:        AnalysisAgentName,
				Description: "Computes and summarizes over tables already present in the conversation.",
				Instructions: "You analyse data that other agents retrieved. " +
					"Compute aggregates, compare values and summarize findings concisely. " +
					"You cannot query the database.",
			},
		},
	}
}

// LoadTeam reads a team definition from a YAML file. Unknown keys are
// rejected.
func LoadTeam(path string) (Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Team{}, types.WrapError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("failed to read team file %s", path), err)
	}
	return ParseTeam(data)
}

// ParseTeam decodes and validates a YAML team definition.
func ParseTeam(data []byte) (Team, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var team Team
	if err := dec.Decode(&team); err != nil {
		return Team{}, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse team definition", err)
	}
	if team.Supervisor.Name == "" {
		team.Supervisor.Name = "supervisor"
	}
	if err := team.Validate(); err != nil {
		return Team{}, err
	}
	return team, nil
}
