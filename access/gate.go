// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package access decides which documents a user may search.
package access

import (
	"slices"
	"strings"

	"github.com/poiesic/docqa/core"
)

// Gate resolves the documents a user is allowed to search.
// Unknown users get an empty set, never an error.
type Gate interface {
	AllowedDocuments(userID string) core.DocumentSet
}

// NormalizeUserID lowercases and trims a user id so lookups are case-insensitive.
func NormalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// Table is an immutable Gate backed by a map of user id to document labels.
type Table struct {
	entries map[string]core.DocumentSet
}

var _ Gate = (*Table)(nil)

// NewTable copies users into a Table. Keys are normalized with NormalizeUserID;
// entries that collide after normalization are merged.
func NewTable(users map[string][]string) *Table {
	entries := make(map[string]core.DocumentSet, len(users))
	for user, docs := range users {
		key := NormalizeUserID(user)
		set, ok := entries[key]
		if !ok {
			set = core.NewDocumentSet()
			entries[key] = set
		}
		for _, doc := range docs {
			set[doc] = struct{}{}
		}
	}
	return &Table{entries: entries}
}

// AllowedDocuments returns a copy of the user's allowed set.
func (t *Table) AllowedDocuments(userID string) core.DocumentSet {
	set, ok := t.entries[NormalizeUserID(userID)]
	if !ok {
		return core.NewDocumentSet()
	}
	out := make(core.DocumentSet, len(set))
	for doc := range set {
		out[doc] = struct{}{}
	}
	return out
}

// Users returns every known user id in sorted order.
func (t *Table) Users() []string {
	users := make([]string, 0, len(t.entries))
	for user := range t.entries {
		users = append(users, user)
	}
	slices.Sort(users)
	return users
}

// Documents returns every document any user may read, sorted.
func (t *Table) Documents() []string {
	all := core.NewDocumentSet()
	for _, set := range t.entries {
		for doc := range set {
			all[doc] = struct{}{}
		}
	}
	return all.Sorted()
}

// CompanyDocument returns the earnings report label for a company letter.
func CompanyDocument(letter string) string {
	return "company_" + letter + "_earnings.pdf"
}

// DefaultUsers returns the built-in demo users and their documents.
func DefaultUsers() map[string][]string {
	return map[string][]string{
		"alice@email.com":   {CompanyDocument("a")},
		"bob@email.com":     {CompanyDocument("b"), CompanyDocument("c")},
		"charlie@email.com": {CompanyDocument("d"), CompanyDocument("e")},
		"aakash@email.com":  {CompanyDocument("a")},
		"test1@email.com":   {CompanyDocument("b"), CompanyDocument("c")},
		"test2@email.com":   {CompanyDocument("a"), CompanyDocument("b")},
	}
}

// DefaultTable returns a Table built from DefaultUsers.
func DefaultTable() *Table {
	return NewTable(DefaultUsers())
}
