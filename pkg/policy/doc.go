// Package policy gates operation plans with Open Policy Agent rules.
//
// Built-in policies block plans that delete protected paths or carry
// malformed operations, and warn on suspiciously large deletions. Additional
// .rego or .json policies can be loaded from disk and hot-reloaded.
package policy
