package wecs

import (
	"fmt"
	"strings"
)

// Schedule build failures are typed so callers can match them with
// errors.As through the collected BuildReport. One build pass records
// every failure it finds instead of stopping at the first.

// HierarchyLoopError reports a set configured as a member of itself.
type HierarchyLoopError struct {
	Set string
}

func (e *HierarchyLoopError) Error() string {
	return fmt.Sprintf("wecs: set %q contains itself", e.Set)
}

// HierarchyCycleError reports a membership cycle between sets.
type HierarchyCycleError struct {
	Cycle []string
}

func (e *HierarchyCycleError) Error() string {
	return fmt.Sprintf("wecs: set membership cycle: %s", renderCycle(e.Cycle))
}

// HierarchyRedundancyError reports a set membership that is already
// implied transitively. Surfaces as an error only when the schedule's
// hierarchy detection is set to LogError.
type HierarchyRedundancyError struct {
	Child  string
	Parent string
}

func (e *HierarchyRedundancyError) Error() string {
	return fmt.Sprintf("wecs: membership of %q in %q is already implied transitively", e.Child, e.Parent)
}

// DependencyLoopError reports a system or set ordered against itself.
type DependencyLoopError struct {
	Node string
}

func (e *DependencyLoopError) Error() string {
	return fmt.Sprintf("wecs: %q is ordered against itself", e.Node)
}

// DependencyCycleError reports an ordering cycle between systems or
// sets. Cycle holds the participating names.
type DependencyCycleError struct {
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("wecs: dependency cycle: %s", renderCycle(e.Cycle))
}

// CrossDependencyError reports an ordering constraint between a set and
// something it contains. Membership already implies shared scheduling
// scope, so ordering across it cannot be satisfied.
type CrossDependencyError struct {
	A string
	B string
}

func (e *CrossDependencyError) Error() string {
	return fmt.Sprintf("wecs: %q and %q are ordered against each other, but one contains the other", e.A, e.B)
}

// SetsIntersectError reports two sets ordered against each other while
// sharing at least one system, which would require the shared systems to
// run before themselves.
type SetsIntersectError struct {
	A      string
	B      string
	Shared []string
}

func (e *SetsIntersectError) Error() string {
	return fmt.Sprintf("wecs: sets %q and %q are ordered against each other but share systems %v", e.A, e.B, e.Shared)
}

// AmbiguousTargetError reports an ordering target that matches more than
// one system, leaving the intended edge undefined.
type AmbiguousTargetError struct {
	Target string
	Count  int
}

func (e *AmbiguousTargetError) Error() string {
	return fmt.Sprintf("wecs: ordering target %q matches %d systems; give them unique names or order against a set", e.Target, e.Count)
}

// UnknownTargetError reports an ordering or membership target that does
// not exist in the stage.
type UnknownTargetError struct {
	From   string
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("wecs: %q refers to unknown target %q", e.From, e.Target)
}

// AmbiguityError reports two systems with conflicting access and no
// ordering between them, so their relative observation order depends on
// scheduling accident. Surfaces as an error only when the schedule's
// ambiguity detection is set to LogError; the default is a warning.
type AmbiguityError struct {
	A          string
	B          string
	Components []string
}

func (e *AmbiguityError) Error() string {
	if len(e.Components) == 0 {
		return fmt.Sprintf("wecs: systems %q and %q conflict on world access without an ordering between them", e.A, e.B)
	}
	return fmt.Sprintf("wecs: systems %q and %q access %v without an ordering between them", e.A, e.B, e.Components)
}

// UninitializedError reports running a schedule that was never built, or
// whose last build failed.
type UninitializedError struct {
	Label string
}

func (e *UninitializedError) Error() string {
	return fmt.Sprintf("wecs: schedule %q has not been built", e.Label)
}

// WorldMismatchError reports running a schedule against a world other
// than the one it was built for.
type WorldMismatchError struct {
	Label string
}

func (e *WorldMismatchError) Error() string {
	return fmt.Sprintf("wecs: schedule %q was built against a different world", e.Label)
}

// BuildReport collects every error and warning one build pass produced.
// It unwraps to the individual errors, so errors.As matches any of them.
type BuildReport struct {
	Label    string
	errs     []error
	warnings []error
}

func (r *BuildReport) add(err error)  { r.errs = append(r.errs, err) }
func (r *BuildReport) warn(err error) { r.warnings = append(r.warnings, err) }

// Errors returns the build errors in detection order.
func (r *BuildReport) Errors() []error { return r.errs }

// Warnings returns the build warnings in detection order.
func (r *BuildReport) Warnings() []error { return r.warnings }

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (r *BuildReport) Unwrap() []error { return r.errs }

func (r *BuildReport) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "wecs: schedule %q failed to build with %d errors:", r.Label, len(r.errs))
	for _, err := range r.errs {
		sb.WriteString("\n\t")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// renderCycle renders node names as "a -> b -> a".
func renderCycle(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, " -> ") + " -> " + names[0]
}
