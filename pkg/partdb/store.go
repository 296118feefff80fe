// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package partdb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store is the in-memory part database. Safe for concurrent use; every read
// returns deep copies so callers never alias the guarded state.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*Project
	// order preserves project creation order for stable summaries.
	order []string
}

// NewStore creates an empty part database.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*Project),
	}
}

// CreateProject registers a new project. A 172 project needs a unique
// project code; the NFR project takes no code and exists at most once.
func (s *Store) CreateProject(in ProjectInput) (*Project, error) {
	switch in.Identifier {
	case Identifier172:
		if in.ProjectCode == "" {
			return nil, ErrProjectCodeRequired
		}
	case IdentifierNFR:
		if in.ProjectCode != "" {
			return nil, ErrProjectCodeForbidden
		}
	default:
		return nil, ErrInvalidIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		if in.Identifier == Identifier172 &&
			p.Identifier == Identifier172 && p.ProjectCode == in.ProjectCode {
			return nil, ErrDuplicateProjectCode
		}
		if in.Identifier == IdentifierNFR && p.Identifier == IdentifierNFR {
			return nil, ErrDuplicateNFRProject
		}
	}

	project := &Project{
		ID:          uuid.NewString(),
		Year:        in.Year,
		Identifier:  in.Identifier,
		ProjectCode: in.ProjectCode,
		Name:        in.Name,
		Description: in.Description,
		Subsystems:  []Subsystem{},
	}
	s.projects[project.ID] = project
	s.order = append(s.order, project.ID)

	return copyProject(project), nil
}

// GetProject returns a copy of the project.
func (s *Store) GetProject(projectID string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return copyProject(p), nil
}

// CreateSubsystem adds a subsystem to a project, allocating the first free
// subsystem number. For 172 projects the number space is 0-99 scoped to the
// project code; the NFR project uses a single 0-9999 space.
func (s *Store) CreateSubsystem(projectID, name string) (*Subsystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}

	number, err := s.nextSubsystemNumberLocked(project)
	if err != nil {
		return nil, err
	}

	project.Subsystems = append(project.Subsystems, Subsystem{
		ID:         uuid.NewString(),
		Name:       name,
		Number:     number,
		Parts:      []Part{},
		Assemblies: []Assembly{},
	})

	created := project.Subsystems[len(project.Subsystems)-1]
	return &created, nil
}

// nextSubsystemNumberLocked finds the first free subsystem number across all
// projects sharing the target project's number space. Caller must hold s.mu.
func (s *Store) nextSubsystemNumberLocked(project *Project) (int, error) {
	maxNumber := MaxNFRSubsystem
	if project.Identifier == Identifier172 {
		maxNumber = Max172Subsystem
	}

	taken := make(map[int]bool)
	for _, p := range s.projects {
		if p.Identifier != project.Identifier {
			continue
		}
		if p.Identifier == Identifier172 && p.ProjectCode != project.ProjectCode {
			continue
		}
		for _, sub := range p.Subsystems {
			taken[sub.Number] = true
		}
	}

	for n := 0; n <= maxNumber; n++ {
		if !taken[n] {
			return n, nil
		}
	}
	return 0, ErrSubsystemNumbersExhausted
}

// CreatePart adds a part to a subsystem, assigning the next free part number
// within the subsystem's sequence.
func (s *Store) CreatePart(projectID, subsystemID string, in PartInput) (*Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, subsystem, err := s.findSubsystemLocked(projectID, subsystemID)
	if err != nil {
		return nil, err
	}

	number, err := nextItemNumber(project, subsystem, 'P')
	if err != nil {
		return nil, err
	}

	subsystem.Parts = append(subsystem.Parts, Part{
		ID:          uuid.NewString(),
		Number:      number,
		Name:        in.Name,
		Description: in.Description,
		Drawing:     in.Drawing,
		Material:    in.Material,
		STLFile:     in.STLFile,
		IconFile:    in.IconFile,
	})

	created := subsystem.Parts[len(subsystem.Parts)-1]
	return &created, nil
}

// CreateAssembly adds an assembly to a subsystem, assigning the next free
// assembly number within the subsystem's sequence.
func (s *Store) CreateAssembly(projectID, subsystemID string, in AssemblyInput) (*Assembly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, subsystem, err := s.findSubsystemLocked(projectID, subsystemID)
	if err != nil {
		return nil, err
	}

	number, err := nextItemNumber(project, subsystem, 'A')
	if err != nil {
		return nil, err
	}

	subsystem.Assemblies = append(subsystem.Assemblies, Assembly{
		ID:          uuid.NewString(),
		Number:      number,
		Name:        in.Name,
		Description: in.Description,
		Drawing:     in.Drawing,
		IconFile:    in.IconFile,
	})

	created := subsystem.Assemblies[len(subsystem.Assemblies)-1]
	return &created, nil
}

// findSubsystemLocked resolves a subsystem within a project. Caller must
// hold s.mu.
func (s *Store) findSubsystemLocked(projectID, subsystemID string) (*Project, *Subsystem, error) {
	project, ok := s.projects[projectID]
	if !ok {
		return nil, nil, ErrProjectNotFound
	}
	for i := range project.Subsystems {
		if project.Subsystems[i].ID == subsystemID {
			return project, &project.Subsystems[i], nil
		}
	}
	return nil, nil, ErrSubsystemNotFound
}

// nextItemNumber builds the next free part or assembly number within the
// subsystem. Formats follow the team convention:
//
//	172 projects: 172-{project_code}-P{SS###}  (### in 000-999)
//	NFR project:  NFR-{SSSS}-P{####}           (#### in 0000-9999)
//
// with A in place of P for assemblies.
func nextItemNumber(project *Project, subsystem *Subsystem, kind byte) (string, error) {
	var prefix string
	var width, maxSeq int
	if project.Identifier == Identifier172 {
		prefix = fmt.Sprintf("172-%s-%c%02d", project.ProjectCode, kind, subsystem.Number)
		width, maxSeq = 3, max172ItemNumber
	} else {
		prefix = fmt.Sprintf("NFR-%04d-%c", subsystem.Number, kind)
		width, maxSeq = 4, maxNFRItemNumber
	}

	taken := make(map[string]bool)
	if kind == 'P' {
		for _, p := range subsystem.Parts {
			taken[p.Number] = true
		}
	} else {
		for _, a := range subsystem.Assemblies {
			taken[a.Number] = true
		}
	}

	for n := 0; n <= maxSeq; n++ {
		candidate := fmt.Sprintf("%s%0*d", prefix, width, n)
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", ErrItemNumbersExhausted
}

// Projects returns copies of all projects in creation order.
func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *copyProject(s.projects[id]))
	}
	return out
}

// Projects172 returns copies of all 172 projects sorted by project code.
func (s *Store) Projects172() []Project {
	var out []Project
	for _, p := range s.Projects() {
		if p.Identifier == Identifier172 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProjectCode < out[j].ProjectCode
	})
	return out
}

// NFRProject returns a copy of the NFR project, if it exists.
func (s *Store) NFRProject() (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.Identifier == IdentifierNFR {
			return copyProject(p), nil
		}
	}
	return nil, ErrProjectNotFound
}

// Summary builds the whole-database rollup.
func (s *Store) Summary() *Summary {
	projects := s.Projects()

	summary := &Summary{
		TotalProjects: len(projects),
		Projects:      projects,
	}
	for _, p := range projects {
		summary.TotalSubsystems += len(p.Subsystems)
		for _, sub := range p.Subsystems {
			summary.TotalParts += len(sub.Parts)
			summary.TotalAssemblies += len(sub.Assemblies)
		}
	}
	return summary
}

func copyProject(p *Project) *Project {
	out := *p
	out.Subsystems = make([]Subsystem, len(p.Subsystems))
	for i, sub := range p.Subsystems {
		cp := sub
		cp.Parts = append([]Part{}, sub.Parts...)
		cp.Assemblies = append([]Assembly{}, sub.Assemblies...)
		out.Subsystems[i] = cp
	}
	return &out
}
