package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in plan policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		protectedPathsPolicy(),
		massDeletePolicy(),
		operationShapePolicy(),
	}
}

// protectedPathsPolicy blocks plans that delete files no supersession rule
// should ever touch.
func protectedPathsPolicy() Policy {
	return Policy{
		Name:        "protected-paths",
		Description: "Blocks deletion of version control data, the manifest, lockfiles, and source files",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "files"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stackforge.policies.protected_paths

import rego.v1

protected_exact := {
	"package.json",
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
	"bun.lockb",
	"bun.lock",
}

protected_prefixes := {".git/", "src/"}

deny contains violation if {
	some op in input.plan.operations
	op.kind == "delete_file"
	op.path in protected_exact
	violation := {
		"message": sprintf("plan deletes protected file %s", [op.path]),
		"severity": "error",
		"operation": sprintf("delete_file %s", [op.path]),
	}
}

deny contains violation if {
	some op in input.plan.operations
	op.kind == "delete_file"
	some prefix in protected_prefixes
	startswith(op.path, prefix)
	violation := {
		"message": sprintf("plan deletes %s under protected prefix %s", [op.path, prefix]),
		"severity": "error",
		"operation": sprintf("delete_file %s", [op.path]),
	}
}
`,
	}
}

// massDeletePolicy flags plans that delete a suspicious share of the tree.
func massDeletePolicy() Policy {
	return Policy{
		Name:        "mass-delete",
		Description: "Warns when a plan deletes more than 10 files or more than half the project tree",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"safety", "files"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stackforge.policies.mass_delete

import rego.v1

deletions := count([op | some op in input.plan.operations; op.kind == "delete_file"])

deny contains violation if {
	deletions > 10
	violation := {
		"message": sprintf("plan deletes %d files", [deletions]),
		"severity": "warning",
	}
}

deny contains violation if {
	total := count(input.state.files)
	total > 0
	deletions * 2 > total
	violation := {
		"message": sprintf("plan deletes %d of %d project files", [deletions, total]),
		"severity": "warning",
	}
}
`,
	}
}

// operationShapePolicy blocks structurally broken operations, which indicate
// a planner or rule table bug rather than a user mistake.
func operationShapePolicy() Policy {
	return Policy{
		Name:        "operation-shape",
		Description: "Blocks operations without an origin tool or required fields",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stackforge.policies.operation_shape

import rego.v1

deny contains violation if {
	some op in input.plan.operations
	not op.origin
	violation := {
		"message": sprintf("operation %v has no origin tool", [op]),
		"severity": "error",
	}
}

deny contains violation if {
	some op in input.plan.operations
	op.kind == "remove_dependency"
	not op.name
	violation := {
		"message": "remove_dependency operation has no dependency name",
		"severity": "error",
	}
}

deny contains violation if {
	some op in input.plan.operations
	op.kind == "delete_file"
	not op.path
	violation := {
		"message": "delete_file operation has no path",
		"severity": "error",
	}
}

deny contains violation if {
	some op in input.plan.operations
	op.kind == "rewrite_script"
	not op.command
	violation := {
		"message": sprintf("rewrite_script operation for %v has no command", [op.name]),
		"severity": "error",
	}
}
`,
	}
}
