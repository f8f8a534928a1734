package checks

import (
	"fmt"

	"github.com/chemaudit/chemaudit/internal/validation"
)

var (
	_ validation.Check = (*UndefinedStereocenters)(nil)
	_ validation.Check = (*UndefinedDoubleBondStereo)(nil)
	_ validation.Check = (*ConflictingStereo)(nil)
)

type UndefinedStereocenters struct{ base }

func NewUndefinedStereocenters() *UndefinedStereocenters {
	return &UndefinedStereocenters{base{
		name:        "undefined_stereocenters",
		description: "Every tetrahedral stereocenter has a defined configuration",
		category:    validation.CategoryStereo,
		severity:    validation.SeverityWarning,
	}}
}

func (c *UndefinedStereocenters) Run(s validation.Subject) validation.CheckResult {
	info := s.Kit.StereoInfo(s.Molecule)
	details := map[string]any{
		"defined":   len(info.DefinedCenters),
		"undefined": len(info.UndefinedCenters),
	}
	if n := len(info.UndefinedCenters); n > 0 {
		return c.fail(fmt.Sprintf("%d undefined stereocenter(s)", n), info.UndefinedCenters, details)
	}
	return c.pass("All stereocenters are defined", details)
}

type UndefinedDoubleBondStereo struct{ base }

func NewUndefinedDoubleBondStereo() *UndefinedDoubleBondStereo {
	return &UndefinedDoubleBondStereo{base{
		name:        "undefined_doublebond_stereo",
		description: "Every stereogenic double bond has a defined configuration",
		category:    validation.CategoryStereo,
		severity:    validation.SeverityWarning,
	}}
}

func (c *UndefinedDoubleBondStereo) Run(s validation.Subject) validation.CheckResult {
	info := s.Kit.StereoInfo(s.Molecule)
	details := map[string]any{
		"defined":   len(info.DefinedBonds),
		"undefined": len(info.UndefinedBonds),
	}
	if n := len(info.UndefinedBonds); n > 0 {
		atoms := make([]int, 0, 2*n)
		for _, b := range info.UndefinedBonds {
			bond := s.Molecule.Bonds[b]
			atoms = append(atoms, bond.Begin, bond.End)
		}
		return c.fail(fmt.Sprintf("%d double bond(s) with undefined stereo", n), atoms, details)
	}
	return c.pass("All stereogenic double bonds are defined", details)
}

type ConflictingStereo struct{ base }

func NewConflictingStereo() *ConflictingStereo {
	return &ConflictingStereo{base{
		name:        "conflicting_stereo",
		description: "Stereo descriptors are consistent and placed on stereogenic atoms",
		category:    validation.CategoryStereo,
		severity:    validation.SeverityError,
	}}
}

func (c *ConflictingStereo) Run(s validation.Subject) validation.CheckResult {
	info := s.Kit.StereoInfo(s.Molecule)
	if len(info.Conflicts) > 0 {
		return c.fail("Conflicting stereo descriptors", nil, map[string]any{"conflicts": info.Conflicts})
	}
	if len(info.Ignored) > 0 {
		return c.fail(fmt.Sprintf("%d stereo marker(s) on non-stereogenic atoms", len(info.Ignored)), info.Ignored, nil)
	}
	return c.pass("No conflicting stereo descriptors", nil)
}
