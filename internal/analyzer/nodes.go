package analyzer

// Tree-sitter JavaScript node types used by the analyzer.
const (
	nodeProgram                = "program"
	nodeComment                = "comment"
	nodeExpressionStatement    = "expression_statement"
	nodeParenthesized          = "parenthesized_expression"
	nodeIdentifier             = "identifier"
	nodeShorthandProperty      = "shorthand_property_identifier"
	nodeShorthandPattern       = "shorthand_property_identifier_pattern"
	nodeStatementBlock         = "statement_block"
	nodeLexicalDeclaration     = "lexical_declaration"
	nodeVariableDeclaration    = "variable_declaration"
	nodeVariableDeclarator     = "variable_declarator"
	nodeFunctionDeclaration    = "function_declaration"
	nodeGeneratorDeclaration   = "generator_function_declaration"
	nodeFunctionExpression     = "function_expression"
	nodeFunction               = "function"
	nodeGeneratorFunction      = "generator_function"
	nodeArrowFunction          = "arrow_function"
	nodeClassDeclaration       = "class_declaration"
	nodeClass                  = "class"
	nodeClassHeritage          = "class_heritage"
	nodeMethodDefinition       = "method_definition"
	nodeFieldDefinition        = "field_definition"
	nodeStaticBlock            = "static_block"
	nodeComputedPropertyName   = "computed_property_name"
	nodePair                   = "pair"
	nodePairPattern            = "pair_pattern"
	nodeObjectPattern          = "object_pattern"
	nodeArrayPattern           = "array_pattern"
	nodeAssignmentPattern      = "assignment_pattern"
	nodeObjectAssignPattern    = "object_assignment_pattern"
	nodeRestPattern            = "rest_pattern"
	nodeMemberExpression       = "member_expression"
	nodeAssignmentExpression   = "assignment_expression"
	nodeAugmentedAssignment    = "augmented_assignment_expression"
	nodeUpdateExpression       = "update_expression"
	nodeForStatement           = "for_statement"
	nodeForInStatement         = "for_in_statement"
	nodeCatchClause            = "catch_clause"
	nodeAwaitExpression        = "await_expression"
	nodeReturnStatement        = "return_statement"
	nodeImportStatement        = "import_statement"
	nodeImportClause           = "import_clause"
	nodeNamespaceImport        = "namespace_import"
	nodeNamedImports           = "named_imports"
	nodeImportSpecifier        = "import_specifier"
	nodeExportStatement        = "export_statement"
	nodeMetaProperty           = "meta_property"
	nodeFormalParameters       = "formal_parameters"
	nodeUndefined              = "undefined"
)

func isFunctionNode(t string) bool {
	switch t {
	case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeFunctionExpression,
		nodeFunction, nodeGeneratorFunction, nodeArrowFunction, nodeMethodDefinition:
		return true
	}
	return false
}

func isClassNode(t string) bool {
	return t == nodeClassDeclaration || t == nodeClass
}

// reservedWords may never name a binding or a reference. The parser
// accepts some of them where an identifier is expected.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true,
}
