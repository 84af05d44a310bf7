package parser

import (
	"strconv"
	"strings"

	"github.com/tuannm99/novardb/internal/dberr"
)

// Parse parses a single SQL statement into an AST. A trailing ';' is optional.
// Parse performs no I/O and no schema validation; every failure wraps
// dberr.ErrParse and names the clause it came from.
func Parse(sql string) (Statement, error) {
	s := strings.TrimSpace(sql)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	if s == "" {
		return nil, dberr.Parsef("empty statement")
	}
	if err := checkBalanced(s); err != nil {
		return nil, dberr.Parsef("%v", err)
	}
	if len(splitTopLevel(s, ';')) > 1 {
		return nil, dberr.Parsef("multiple statements in one call; split the script first")
	}
	s = normalizeSpace(s)

	switch {
	case hasKeywordPrefix(s, "CREATE TABLE"):
		return parseCreateTable(s)
	case hasKeywordPrefix(s, "INSERT INTO"):
		return parseInsert(s)
	case hasKeywordPrefix(s, "SELECT"):
		return parseSelect(s)
	case hasKeywordPrefix(s, "UPDATE"):
		return parseUpdate(s)
	case hasKeywordPrefix(s, "DELETE FROM"):
		return parseDelete(s)
	case hasKeywordPrefix(s, "DROP TABLE"):
		return parseDropTable(s)
	default:
		return nil, dberr.Parsef("unsupported statement: %q", sql)
	}
}

// ----- CREATE TABLE -----

func parseCreateTable(sql string) (Statement, error) {
	// "CREATE TABLE [IF NOT EXISTS] users (id INT PRIMARY KEY, name VARCHAR(50) NOT NULL)"
	rest := strings.TrimSpace(sql[len("CREATE TABLE"):])
	stmt := &CreateTableStmt{}
	if hasKeywordPrefix(rest, "IF NOT EXISTS") {
		stmt.IfNotExists = true
		rest = strings.TrimSpace(rest[len("IF NOT EXISTS"):])
	}

	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return nil, dberr.Parsef("invalid CREATE TABLE syntax: expected (column definitions)")
	}
	name, err := parseIdent(rest[:open])
	if err != nil {
		return nil, dberr.Parsef("invalid CREATE TABLE table name: %v", err)
	}
	stmt.TableName = name

	body := strings.TrimSpace(rest[open+1 : len(rest)-1])
	if body == "" {
		return nil, dberr.Parsef("invalid CREATE TABLE syntax: empty column list")
	}

	var tableLevel []string
	for _, def := range splitTopLevel(body, ',') {
		def = strings.TrimSpace(def)
		if def == "" {
			return nil, dberr.Parsef("invalid CREATE TABLE syntax: empty column definition")
		}
		if hasKeywordPrefix(def, "PRIMARY KEY") || hasKeywordPrefix(def, "UNIQUE") {
			tableLevel = append(tableLevel, def)
			continue
		}
		col, err := parseColumnDef(def)
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
	}
	for _, def := range tableLevel {
		if err := applyTableConstraint(stmt, def); err != nil {
			return nil, err
		}
	}
	if len(stmt.Columns) == 0 {
		return nil, dberr.Parsef("invalid CREATE TABLE syntax: no columns")
	}
	return stmt, nil
}

func parseColumnDef(def string) (ColumnDef, error) {
	toks := strings.Fields(def)
	if len(toks) < 2 {
		return ColumnDef{}, dberr.Parsef("invalid column definition %q: missing type", def)
	}
	name, err := parseIdent(toks[0])
	if err != nil {
		return ColumnDef{}, dberr.Parsef("invalid column definition %q: %v", def, err)
	}

	// Re-join the type token with its argument list: "VARCHAR (50)", "DECIMAL(10, 2)".
	typ := toks[1]
	i := 2
	if !strings.Contains(typ, "(") && i < len(toks) && strings.HasPrefix(toks[i], "(") {
		typ += toks[i]
		i++
	}
	for strings.Count(typ, "(") > strings.Count(typ, ")") && i < len(toks) {
		typ += toks[i]
		i++
	}

	col := ColumnDef{Name: name}
	base, args, hasArgs := strings.Cut(typ, "(")
	col.Type = strings.ToUpper(base)
	if _, err := parseIdent(col.Type); err != nil {
		return ColumnDef{}, dberr.Parsef("invalid column definition %q: bad type %q", def, base)
	}
	if hasArgs {
		if !strings.HasSuffix(args, ")") {
			return ColumnDef{}, dberr.Parsef("invalid column definition %q: bad type arguments", def)
		}
		nums := strings.Split(strings.TrimSuffix(args, ")"), ",")
		vals := make([]int, 0, len(nums))
		for _, n := range nums {
			v, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil || v <= 0 {
				return ColumnDef{}, dberr.Parsef("invalid column definition %q: bad type argument %q", def, n)
			}
			vals = append(vals, v)
		}
		if len(vals) == 1 {
			col.MaxLength = &vals[0]
		}
	}

	for ; i < len(toks); i++ {
		var k Constraint
		switch w := strings.ToUpper(toks[i]); {
		case w == "PRIMARY" && i+1 < len(toks) && strings.EqualFold(toks[i+1], "KEY"):
			k = PrimaryKey
			i++
		case w == "NOT" && i+1 < len(toks) && strings.EqualFold(toks[i+1], "NULL"):
			k = NotNull
			i++
		case w == "UNIQUE":
			k = Unique
		case w == "NULL":
			continue
		default:
			return ColumnDef{}, dberr.Parsef("invalid column definition %q: unexpected %q", def, toks[i])
		}
		if !col.Has(k) {
			col.Constraints = append(col.Constraints, k)
		}
	}
	return col, nil
}

// applyTableConstraint handles `PRIMARY KEY (col)` and `UNIQUE (col)` entries.
func applyTableConstraint(stmt *CreateTableStmt, def string) error {
	k, rest := Unique, def[len("UNIQUE"):]
	if hasKeywordPrefix(def, "PRIMARY KEY") {
		k, rest = PrimaryKey, def[len("PRIMARY KEY"):]
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return dberr.Parsef("invalid table constraint %q", def)
	}
	cols := splitTopLevel(rest[1:len(rest)-1], ',')
	if len(cols) != 1 {
		return dberr.Parsef("invalid table constraint %q: composite keys are not supported", def)
	}
	name, err := parseIdent(cols[0])
	if err != nil {
		return dberr.Parsef("invalid table constraint %q: %v", def, err)
	}
	for i := range stmt.Columns {
		if stmt.Columns[i].Name == name {
			if !stmt.Columns[i].Has(k) {
				stmt.Columns[i].Constraints = append(stmt.Columns[i].Constraints, k)
			}
			return nil
		}
	}
	return dberr.Parsef("invalid table constraint %q: unknown column %s", def, name)
}

// ----- INSERT -----

func parseInsert(sql string) (Statement, error) {
	// "INSERT INTO users [(id, name)] VALUES (1, 'abc', true, null)"
	rest := strings.TrimSpace(sql[len("INSERT INTO"):])
	at := indexKeyword(rest, "VALUES", 0)
	if at < 0 {
		return nil, dberr.Parsef("invalid INSERT syntax: missing VALUES")
	}
	target := strings.TrimSpace(rest[:at])
	valPart := strings.TrimSpace(rest[at+len("VALUES"):])

	stmt := &InsertStmt{}
	if open := strings.IndexByte(target, '('); open >= 0 {
		if !strings.HasSuffix(target, ")") {
			return nil, dberr.Parsef("invalid INSERT column list")
		}
		for _, c := range splitTopLevel(target[open+1:len(target)-1], ',') {
			col, err := parseIdent(c)
			if err != nil {
				return nil, dberr.Parsef("invalid INSERT column list: %v", err)
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		target = target[:open]
	}
	name, err := parseIdent(target)
	if err != nil {
		return nil, dberr.Parsef("invalid INSERT table name: %v", err)
	}
	stmt.TableName = name

	if !strings.HasPrefix(valPart, "(") || !strings.HasSuffix(valPart, ")") {
		return nil, dberr.Parsef("invalid INSERT VALUES syntax: expected (v1, v2, ...)")
	}
	inner := valPart[1 : len(valPart)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, dberr.Parsef("invalid INSERT VALUES syntax: empty value list")
	}
	for _, rv := range splitTopLevel(inner, ',') {
		stmt.Values = append(stmt.Values, parseLiteral(strings.TrimSpace(rv)))
	}
	if len(stmt.Columns) > 0 && len(stmt.Columns) != len(stmt.Values) {
		return nil, dberr.Parsef("invalid INSERT syntax: %d columns but %d values", len(stmt.Columns), len(stmt.Values))
	}
	return stmt, nil
}

// parseLiteral maps one literal token to a value: NULL, quoted string,
// TRUE/FALSE, decimal (contains '.'), integer, else the raw text.
func parseLiteral(rv string) any {
	if rv == "" || strings.EqualFold(rv, "NULL") {
		return nil
	}
	if len(rv) >= 2 && rv[0] == '\'' && rv[len(rv)-1] == '\'' {
		return strings.ReplaceAll(rv[1:len(rv)-1], "''", "'")
	}
	if strings.EqualFold(rv, "TRUE") {
		return true
	}
	if strings.EqualFold(rv, "FALSE") {
		return false
	}
	if strings.Contains(rv, ".") {
		if f, err := strconv.ParseFloat(rv, 64); err == nil {
			return f
		}
		return rv
	}
	if i, err := strconv.ParseInt(rv, 10, 64); err == nil {
		return i
	}
	return rv
}

// ----- SELECT -----

type clause struct {
	name string
	pos  int
}

func parseSelect(sql string) (Statement, error) {
	rest := strings.TrimSpace(sql[len("SELECT"):])
	from := indexKeyword(rest, "FROM", 0)
	if from < 0 {
		return nil, dberr.Parsef("invalid SELECT syntax: missing FROM")
	}
	cols, err := parseProjection(rest[:from])
	if err != nil {
		return nil, err
	}
	stmt := &SelectStmt{Columns: cols}
	body := strings.TrimSpace(rest[from+len("FROM"):])

	// Locate top-level clauses; each may appear once, in this order.
	order := []string{"JOIN", "WHERE", "GROUP BY", "ORDER BY", "LIMIT"}
	var found []clause
	for _, kw := range order {
		if p := indexKeyword(body, kw, 0); p >= 0 {
			found = append(found, clause{name: kw, pos: p})
		}
	}
	for i := 1; i < len(found); i++ {
		if found[i].pos < found[i-1].pos {
			return nil, dberr.Parsef("invalid SELECT syntax: %s must come before %s", found[i].name, found[i-1].name)
		}
	}
	segment := func(i int) string {
		start := found[i].pos + len(found[i].name)
		end := len(body)
		if i+1 < len(found) {
			end = found[i+1].pos
		}
		return strings.TrimSpace(body[start:end])
	}

	head := body
	if len(found) > 0 {
		head = body[:found[0].pos]
	}
	joinType, err := parseFromHead(stmt, head, len(found) > 0 && found[0].name == "JOIN")
	if err != nil {
		return nil, err
	}

	for i, c := range found {
		seg := segment(i)
		switch c.name {
		case "JOIN":
			j, err := parseJoin(seg)
			if err != nil {
				return nil, err
			}
			j.Type = joinType
			stmt.Join = j
		case "WHERE":
			cond, err := parseCondition(seg)
			if err != nil {
				return nil, err
			}
			stmt.Where = cond
		case "GROUP BY":
			if len(splitTopLevel(seg, ',')) > 1 {
				return nil, dberr.Parsef("invalid GROUP BY: only one column is supported")
			}
			ref, err := parseColumnRef(seg)
			if err != nil {
				return nil, dberr.Parsef("invalid GROUP BY: %v", err)
			}
			stmt.GroupBy = ref.String()
		case "ORDER BY":
			ob, err := parseOrderBy(seg)
			if err != nil {
				return nil, err
			}
			stmt.OrderBy = ob
		case "LIMIT":
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 {
				return nil, dberr.Parsef("invalid LIMIT: %q is not a non-negative integer", seg)
			}
			stmt.Limit = &n
		}
	}
	return stmt, nil
}

// parseFromHead reads "table [[AS] alias] [INNER|LEFT|RIGHT|FULL [OUTER]]".
// The join type words belong to the following JOIN keyword.
func parseFromHead(stmt *SelectStmt, head string, hasJoin bool) (JoinType, error) {
	toks := strings.Fields(head)
	joinType := InnerJoin
	if hasJoin {
		if n := len(toks); n > 0 && strings.EqualFold(toks[n-1], "OUTER") {
			toks = toks[:n-1]
		}
		if n := len(toks); n > 0 {
			switch t := JoinType(strings.ToUpper(toks[n-1])); t {
			case InnerJoin, LeftJoin, RightJoin, FullJoin:
				joinType = t
				toks = toks[:n-1]
			case "CROSS":
				toks = toks[:n-1]
			}
		}
	}
	if len(toks) == 0 {
		return "", dberr.Parsef("invalid FROM: missing table name")
	}
	name, err := parseIdent(toks[0])
	if err != nil {
		return "", dberr.Parsef("invalid FROM: %v", err)
	}
	stmt.TableName = name
	alias, err := parseAlias(toks[1:])
	if err != nil {
		return "", dberr.Parsef("invalid FROM: %v", err)
	}
	stmt.Alias = alias
	return joinType, nil
}

func parseAlias(toks []string) (string, error) {
	if len(toks) > 0 && strings.EqualFold(toks[0], "AS") {
		toks = toks[1:]
		if len(toks) == 0 {
			return "", dberr.Parsef("missing alias after AS")
		}
	}
	switch len(toks) {
	case 0:
		return "", nil
	case 1:
		return parseIdent(toks[0])
	default:
		return "", dberr.Parsef("unexpected %q", strings.Join(toks, " "))
	}
}

// parseJoin reads "table [[AS] alias] [ON a = b]". An ON clause that is not a
// column equality leaves On nil.
func parseJoin(seg string) (*JoinClause, error) {
	target, onPart := seg, ""
	if at := indexKeyword(seg, "ON", 0); at >= 0 {
		target, onPart = strings.TrimSpace(seg[:at]), strings.TrimSpace(seg[at+len("ON"):])
	}
	toks := strings.Fields(target)
	if len(toks) == 0 {
		return nil, dberr.Parsef("invalid JOIN: missing table name")
	}
	name, err := parseIdent(toks[0])
	if err != nil {
		return nil, dberr.Parsef("invalid JOIN: %v", err)
	}
	alias, err := parseAlias(toks[1:])
	if err != nil {
		return nil, dberr.Parsef("invalid JOIN: %v", err)
	}
	j := &JoinClause{Table: name, Alias: alias}

	if at, op := findOperator(onPart); op == "=" {
		left, lerr := parseColumnRef(onPart[:at])
		right, rerr := parseColumnRef(onPart[at+1:])
		if lerr == nil && rerr == nil {
			j.On = &JoinOn{Left: left, Right: right}
		}
	}
	return j, nil
}

var operators = []string{">=", "<=", "!=", "<>", "=", ">", "<"}

// findOperator locates the first comparison operator outside quotes.
func findOperator(s string) (int, string) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		for _, op := range operators {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

func parseCondition(seg string) (*Condition, error) {
	if seg == "" {
		return nil, dberr.Parsef("invalid WHERE: empty condition")
	}
	if indexKeyword(seg, "AND", 0) >= 0 || indexKeyword(seg, "OR", 0) >= 0 {
		return nil, dberr.Parsef("invalid WHERE: only a single comparison is supported")
	}
	at, op := findOperator(seg)
	if at < 0 {
		return nil, dberr.Parsef("invalid WHERE: expected <column> <op> <literal>, got %q", seg)
	}
	ref, err := parseColumnRef(seg[:at])
	if err != nil {
		return nil, dberr.Parsef("invalid WHERE column: %v", err)
	}
	raw := strings.TrimSpace(seg[at+len(op):])
	if raw == "" {
		return nil, dberr.Parsef("invalid WHERE: missing value after %s", op)
	}
	if op == "<>" {
		op = "!="
	}
	return &Condition{Column: ref.String(), Op: op, Value: parseLiteral(raw)}, nil
}

func parseOrderBy(seg string) (*OrderBy, error) {
	toks := strings.Fields(seg)
	if len(toks) == 0 || len(toks) > 2 || strings.Contains(seg, ",") {
		return nil, dberr.Parsef("invalid ORDER BY: expected <column> [ASC|DESC]")
	}
	ob := &OrderBy{Ascending: true}
	if isAggregate(toks[0]) {
		ob.Column = canonicalAggregate(toks[0])
	} else {
		ref, err := parseColumnRef(toks[0])
		if err != nil {
			return nil, dberr.Parsef("invalid ORDER BY: %v", err)
		}
		ob.Column = ref.String()
	}
	if len(toks) == 2 {
		switch strings.ToUpper(toks[1]) {
		case "ASC":
		case "DESC":
			ob.Ascending = false
		default:
			return nil, dberr.Parsef("invalid ORDER BY direction %q", toks[1])
		}
	}
	return ob, nil
}

var aggregateFuncs = []string{"COUNT", "SUM", "AVG", "MIN", "MAX"}

func isAggregate(tok string) bool {
	name, _, ok := strings.Cut(tok, "(")
	if !ok || !strings.HasSuffix(tok, ")") {
		return false
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, f := range aggregateFuncs {
		if name == f {
			return true
		}
	}
	return false
}

// canonicalAggregate upper-cases the function name and drops inner spaces:
// "count( * )" becomes "COUNT(*)".
func canonicalAggregate(tok string) string {
	name, arg, _ := strings.Cut(tok, "(")
	arg = strings.TrimSpace(strings.TrimSuffix(arg, ")"))
	return strings.ToUpper(strings.TrimSpace(name)) + "(" + arg + ")"
}

func parseProjection(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dberr.Parsef("invalid SELECT list: no columns")
	}
	var cols []string
	for _, c := range splitTopLevel(s, ',') {
		c = strings.TrimSpace(c)
		switch {
		case c == "*":
			cols = append(cols, c)
		case isAggregate(c):
			agg := canonicalAggregate(c)
			name, arg, _ := strings.Cut(agg[:len(agg)-1], "(")
			if arg == "*" && name != "COUNT" {
				return nil, dberr.Parsef("invalid SELECT list: %s(*) is not supported", name)
			}
			if arg != "*" {
				if _, err := parseColumnRef(arg); err != nil {
					return nil, dberr.Parsef("invalid SELECT list: %s: %v", c, err)
				}
			}
			cols = append(cols, agg)
		default:
			ref, err := parseColumnRef(c)
			if err != nil {
				return nil, dberr.Parsef("invalid SELECT list: %v", err)
			}
			cols = append(cols, ref.String())
		}
	}
	return cols, nil
}

// ----- UPDATE / DELETE / DROP -----

func parseUpdate(sql string) (Statement, error) {
	// "UPDATE t SET a=1, b='x' [WHERE id=1]"
	rest := strings.TrimSpace(sql[len("UPDATE"):])
	at := indexKeyword(rest, "SET", 0)
	if at < 0 {
		return nil, dberr.Parsef("invalid UPDATE syntax: missing SET")
	}
	name, err := parseIdent(rest[:at])
	if err != nil {
		return nil, dberr.Parsef("invalid UPDATE table name: %v", err)
	}
	setPart := strings.TrimSpace(rest[at+len("SET"):])
	var wherePart string
	if w := indexKeyword(setPart, "WHERE", 0); w >= 0 {
		wherePart = strings.TrimSpace(setPart[w+len("WHERE"):])
		setPart = strings.TrimSpace(setPart[:w])
		if wherePart == "" {
			return nil, dberr.Parsef("invalid WHERE: empty condition")
		}
	}
	if setPart == "" {
		return nil, dberr.Parsef("invalid UPDATE syntax: empty SET")
	}

	stmt := &UpdateStmt{TableName: name}
	for _, a := range splitTopLevel(setPart, ',') {
		col, val, ok := strings.Cut(a, "=")
		if !ok {
			return nil, dberr.Parsef("invalid SET assignment %q", strings.TrimSpace(a))
		}
		c, err := parseIdent(col)
		if err != nil {
			return nil, dberr.Parsef("invalid SET column: %v", err)
		}
		stmt.Set = append(stmt.Set, Assignment{Column: c, Value: parseLiteral(strings.TrimSpace(val))})
	}
	if wherePart != "" {
		if stmt.Where, err = parseCondition(wherePart); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func parseDelete(sql string) (Statement, error) {
	// "DELETE FROM t [WHERE col=literal]"
	rest := strings.TrimSpace(sql[len("DELETE FROM"):])
	tablePart, wherePart := rest, ""
	hasWhere := false
	if w := indexKeyword(rest, "WHERE", 0); w >= 0 {
		tablePart, wherePart = rest[:w], strings.TrimSpace(rest[w+len("WHERE"):])
		hasWhere = true
	}
	name, err := parseIdent(tablePart)
	if err != nil {
		return nil, dberr.Parsef("invalid DELETE table name: %v", err)
	}
	stmt := &DeleteStmt{TableName: name}
	if hasWhere {
		if stmt.Where, err = parseCondition(wherePart); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func parseDropTable(sql string) (Statement, error) {
	rest := strings.TrimSpace(sql[len("DROP TABLE"):])
	stmt := &DropTableStmt{}
	if hasKeywordPrefix(rest, "IF EXISTS") {
		stmt.IfExists = true
		rest = strings.TrimSpace(rest[len("IF EXISTS"):])
	}
	name, err := parseIdent(rest)
	if err != nil {
		return nil, dberr.Parsef("invalid DROP TABLE syntax: %v", err)
	}
	stmt.TableName = name
	return stmt, nil
}
