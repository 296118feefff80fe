// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package partdb holds the part-numbering database: projects, subsystems,
// parts, and assemblies for FRC robot CAD management.
//
// Two project families exist. Competition and offseason robots live under
// identifier "172" and are distinguished by a project code like "24A" or
// "25B"; their part numbers look like 172-25A-P01003. Multi-year components
// live in the single "nfr" project with numbers like NFR-0004-P0017.
package partdb

import "errors"

// Project identifiers.
const (
	// Identifier172 marks competition and offseason robot projects.
	Identifier172 = "172"

	// IdentifierNFR marks the single multi-year components project.
	IdentifierNFR = "nfr"
)

// Subsystem number ranges. Number 0 is by convention the full robot and the
// top of the range is miscellaneous.
const (
	Max172Subsystem = 99
	MaxNFRSubsystem = 9999
)

// Sequential part/assembly number ranges within a subsystem.
const (
	max172ItemNumber = 999
	maxNFRItemNumber = 9999
)

var (
	// ErrProjectNotFound is returned when a project ID resolves to nothing.
	ErrProjectNotFound = errors.New("project not found")

	// ErrSubsystemNotFound is returned when a subsystem ID resolves to
	// nothing within its project.
	ErrSubsystemNotFound = errors.New("subsystem not found")

	// ErrInvalidIdentifier is returned for identifiers other than "172"
	// and "nfr".
	ErrInvalidIdentifier = errors.New(`identifier must be "172" or "nfr"`)

	// ErrProjectCodeRequired is returned when a 172 project is created
	// without a project code.
	ErrProjectCodeRequired = errors.New("172 projects must have a project code")

	// ErrProjectCodeForbidden is returned when the NFR project is created
	// with a project code.
	ErrProjectCodeForbidden = errors.New("NFR projects must not have a project code")

	// ErrDuplicateProjectCode is returned when a 172 project code is
	// already taken.
	ErrDuplicateProjectCode = errors.New("172 project with this code already exists")

	// ErrDuplicateNFRProject is returned on a second NFR project; there is
	// only ever one.
	ErrDuplicateNFRProject = errors.New("NFR project already exists")

	// ErrSubsystemNumbersExhausted is returned when every subsystem number
	// in the project's range is taken.
	ErrSubsystemNumbersExhausted = errors.New("no available subsystem numbers")

	// ErrItemNumbersExhausted is returned when every sequential part or
	// assembly number in the subsystem's range is taken.
	ErrItemNumbersExhausted = errors.New("no available part numbers")
)

// Part is a single manufactured or purchased component.
type Part struct {
	ID          string `json:"_id"`
	Number      string `json:"number"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Drawing     string `json:"drawing,omitempty"`
	Material    string `json:"material,omitempty"`
	STLFile     string `json:"stl_file,omitempty"`
	IconFile    string `json:"icon_file,omitempty"`
}

// Assembly is a named collection of parts with its own drawing.
type Assembly struct {
	ID          string `json:"_id"`
	Number      string `json:"number"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Drawing     string `json:"drawing,omitempty"`
	IconFile    string `json:"icon_file,omitempty"`
}

// Subsystem groups the parts and assemblies of one robot subsystem. Its
// number is allocated at creation and embedded in every part number below it.
type Subsystem struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Number     int        `json:"subsystem_number"`
	Parts      []Part     `json:"parts"`
	Assemblies []Assembly `json:"assemblies"`
}

// Project is the top-level container.
type Project struct {
	ID          string      `json:"_id"`
	Year        int         `json:"year"`
	Identifier  string      `json:"identifier"`
	ProjectCode string      `json:"project_code,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Subsystems  []Subsystem `json:"subsystems"`
}

// Summary is the whole-database rollup served by the summary endpoint.
type Summary struct {
	TotalParts      int       `json:"total_parts"`
	TotalAssemblies int       `json:"total_assemblies"`
	TotalSubsystems int       `json:"total_subsystems"`
	TotalProjects   int       `json:"total_projects"`
	Projects        []Project `json:"projects"`
}

// ProjectInput is the caller-supplied portion of a new project.
type ProjectInput struct {
	Year        int    `json:"year"`
	Identifier  string `json:"identifier"`
	ProjectCode string `json:"project_code,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PartInput is the caller-supplied portion of a new part.
type PartInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Drawing     string `json:"drawing,omitempty"`
	Material    string `json:"material,omitempty"`
	STLFile     string `json:"stl_file,omitempty"`
	IconFile    string `json:"icon_file,omitempty"`
}

// AssemblyInput is the caller-supplied portion of a new assembly.
type AssemblyInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Drawing     string `json:"drawing,omitempty"`
	IconFile    string `json:"icon_file,omitempty"`
}
