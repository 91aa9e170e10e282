//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

// Package bridge detects references to the frida bridge modules in agent
// source text and injects the import statements that are missing.
//
// Detection is a documented heuristic, not a parser: import statements and
// keyword usage are matched with regular expressions, so a keyword inside a
// comment or string literal still counts as usage. The extra import that may
// result is harmless because the module simply stays unused.
package bridge

import (
	"regexp"
)

// Module names of the frida bridges.
const (
	JavaBridge  = "frida-java-bridge"
	ObjCBridge  = "frida-objc-bridge"
	SwiftBridge = "frida-swift-bridge"
)

// importRE matches an import of a frida bridge module, with or without a
// bound identifier and `from` clause, using either quote style.
var importRE = regexp.MustCompile(
	`import(?:\s+[^"']+\s+from\s+)?["'](frida-[^"']+-bridge)["']`,
)

// mapping binds a capability keyword to its bridge module and the canonical
// import statement injected when the keyword is used without an import.
type mapping struct {
	Keyword string
	Module  string
	Stmt    string
	usage   *regexp.Regexp
}

// mappings is iterated in this fixed order so injection output is
// deterministic.
var mappings = []mapping{
	{
		Keyword: "Java",
		Module:  JavaBridge,
		Stmt:    `import Java from "frida-java-bridge";`,
		usage:   regexp.MustCompile(`\bJava\b`),
	},
	{
		Keyword: "ObjC",
		Module:  ObjCBridge,
		Stmt:    `import ObjC from "frida-objc-bridge";`,
		usage:   regexp.MustCompile(`\bObjC\b`),
	},
	{
		Keyword: "Swift",
		Module:  SwiftBridge,
		Stmt:    `import Swift from "frida-swift-bridge";`,
		usage:   regexp.MustCompile(`\bSwift\b`),
	},
}

// Imports returns the set of distinct bridge module names already imported
// by source.
func Imports(source string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, m := range importRE.FindAllStringSubmatch(source, -1) {
		found[m[1]] = struct{}{}
	}
	return found
}

// Uses reports whether keyword appears in source as a standalone word.
// Unknown keywords never match.
func Uses(keyword, source string) bool {
	for _, m := range mappings {
		if m.Keyword == keyword {
			return m.usage.MatchString(source)
		}
	}
	return false
}

// Missing returns the canonical import statements for every capability
// keyword used in source whose bridge module is not yet imported, in the
// fixed capability order.
func Missing(source string) []string {
	existing := Imports(source)
	var stmts []string
	for _, m := range mappings {
		if _, ok := existing[m.Module]; ok {
			continue
		}
		if m.usage.MatchString(source) {
			stmts = append(stmts, m.Stmt)
		}
	}
	return stmts
}

// Inject prepends the missing bridge imports to source, one per line,
// separated from the original text by a single newline. When nothing is
// missing the source is returned unchanged, which makes Inject idempotent.
func Inject(source string) string {
	stmts := Missing(source)
	if len(stmts) == 0 {
		return source
	}
	out := ""
	for _, stmt := range stmts {
		out += stmt + "\n"
	}
	return out + source
}
