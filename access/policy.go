package access

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the on-disk form of the access rules.
//
//	users:
//	  alice@email.com: [company_a_earnings.pdf]
//	aliases:
//	  - name: company_a
//	    document: company_a_earnings.pdf
type Policy struct {
	Users   map[string][]string `yaml:"users"`
	Aliases []Alias             `yaml:"aliases,omitempty"`
}

// DefaultPolicy returns the built-in users and aliases.
func DefaultPolicy() *Policy {
	return &Policy{
		Users:   DefaultUsers(),
		Aliases: DefaultAliases(),
	}
}

// LoadPolicy reads a policy from path. A missing file yields DefaultPolicy.
// A file without aliases gets the default vocabulary.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	if policy.Users == nil {
		policy.Users = make(map[string][]string)
	}
	if len(policy.Aliases) == 0 {
		policy.Aliases = DefaultAliases()
	}
	for i := range policy.Aliases {
		policy.Aliases[i].Name = strings.ToLower(policy.Aliases[i].Name)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// SavePolicy writes policy to path as YAML.
func SavePolicy(path string, policy *Policy) error {
	data, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}

	return nil
}

// Validate checks that every user id is non-blank and every alias is complete.
func (p *Policy) Validate() error {
	for user := range p.Users {
		if NormalizeUserID(user) == "" {
			return fmt.Errorf("%w: blank user id", ErrInvalidPolicy)
		}
	}
	return ValidateAliases(p.Aliases)
}

// Table builds the Gate described by the policy.
func (p *Policy) Table() *Table {
	return NewTable(p.Users)
}
