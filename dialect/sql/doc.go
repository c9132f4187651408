// Package sql compiles typed builder chains into parameterized SQL text and
// executes it through database/sql.
//
// Every builder produces a Statement: text with positional "?" placeholders
// and its ordered arguments. Builders record misuse as they are chained and
// report it from Compile, before any I/O.
//
// # Builder Types
//
//   - Predicate: WHERE and ON conditions, with algebraic NOT
//   - Projection: column lists, aggregates and correlated subqueries
//   - Selector: SELECT with aliases, joins, unions, grouping and paging
//   - InsertBuilder, UpdateBuilder, DeleteBuilder: writes, optionally driven
//     by a schema.Table mapping and an entity value
//   - DropBuilder: DROP TABLE IF EXISTS
//
// # Predicates
//
//	p := sql.Where(func(p *sql.Predicate) {
//		p.GT("codeImport", 10).Or().Not().IsNull("closedAt")
//	})
//	// codeImport > ? OR closedAt IS NOT NULL
//
// Not negates the next condition: = becomes <>, > becomes <=, IS NULL
// becomes IS NOT NULL and IN becomes NOT IN. Before a Scope it wraps the
// group as NOT (...).
//
// # Aliases and Joins
//
// A Selector's alias is the first three characters of its table name,
// lower-cased. Aliases are unique within one top-level statement; a
// colliding derived alias gets a numeric suffix:
//
//	s := sql.Select("Entity")
//	s.Join(sql.Select("Entry"), "id", "entityId")
//	// SELECT * FROM Entity AS ent INNER JOIN Entry AS ent1 ON ent.id = ent1.entityId
//
// Arguments of a SELECT are ordered as projection arguments, then join
// chain arguments, then WHERE arguments.
//
// # Typed Fields
//
//	var CodeImport = sql.OrderedField[int]("codeImport")
//	sql.Delete("Entity").Where(func(p *sql.Predicate) { p.Apply(CodeImport.GT(10)) })
//	// DELETE FROM Entity WHERE codeImport > ?
//
// # Drivers
//
// Driver adapts a *database/sql.DB to dialect.Driver. StatsDriver and
// DebugDriver decorate any dialect.Driver with statistics and logging.
package sql
