package query

import "github.com/proseql/proseql/internal/docval"

// RelationKind distinguishes a foreign-key-on-this-record relationship
// from an inverse one resolved by scanning the target collection.
type RelationKind int

const (
	RelRef RelationKind = iota
	RelInverse
)

// OnDelete is the cascade policy a ref relationship declares (spec
// §4.7's delete cascade rules); populate itself only reads Optional, but
// the type lives here alongside Relationship since both are part of a
// collection's relationship declaration.
type OnDelete string

const (
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteSetNull  OnDelete = "setNull"
)

// Relationship is one declared relationship on a collection.
type Relationship struct {
	Name       string
	Kind       RelationKind
	Collection string   // target collection name
	ForeignKey string   // field holding the id (ref: on this record; inverse: on the target)
	Optional   bool     // ref: missing target is tolerated rather than DanglingReferenceError
	OnDelete   OnDelete // ref only
}

// PopulateOption is the (possibly nested) populate configuration for one
// relationship.
type PopulateOption struct {
	Select   []string
	Populate map[string]*PopulateOption
	Sort     []SortKey
	Optional *bool // overrides Relationship.Optional when set
}

// GetByID looks up a single record by id in another collection's current
// snapshot.
type GetByID func(collection, id string) (docval.Map, bool)

// GetInverse returns every record in collection whose field fkField
// equals id.
type GetInverse func(collection, fkField, id string) []docval.Map

// GetRelationships resolves another collection's declared relationships
// by name, used to recurse into a nested populate option.
type GetRelationships func(collection string) map[string]Relationship

// Populate resolves one relationship across every record in place,
// writing the result under relName. Ref relationships pointing at a
// missing target fail with DanglingReferenceError unless optional. A
// nested opt.Populate recurses into the resolved target(s) before
// opt.Select projects them, per spec §4.6(c)'s "nested options object
// whose keys can recursively include select/populate".
func Populate(records []docval.Map, relName string, rel Relationship, opt *PopulateOption, getByID GetByID, getInverse GetInverse, getRelationships GetRelationships) error {
	for _, rec := range records {
		switch rel.Kind {
		case RelRef:
			fkVal := rec[rel.ForeignKey]
			if docval.IsNull(fkVal) {
				rec[relName] = nil
				continue
			}
			id := docval.ToString(fkVal)
			target, ok := getByID(rel.Collection, id)
			if !ok {
				optional := rel.Optional
				if opt != nil && opt.Optional != nil {
					optional = *opt.Optional
				}
				if !optional {
					return &DanglingReferenceError{Collection: rel.Collection, Relation: relName, ID: id}
				}
				rec[relName] = nil
				continue
			}
			if opt != nil {
				target = docval.CloneMap(target)
				if err := populateNested(rel.Collection, target, opt, getByID, getInverse, getRelationships); err != nil {
					return err
				}
				target = Project(target, opt.Select)
			}
			rec[relName] = target

		case RelInverse:
			id := docval.ToString(rec["id"])
			targets := getInverse(rel.Collection, rel.ForeignKey, id)
			if opt != nil && len(opt.Populate) > 0 {
				cloned := make([]docval.Map, len(targets))
				for i, t := range targets {
					cloned[i] = docval.CloneMap(t)
				}
				targets = cloned
				for _, t := range targets {
					if err := populateNested(rel.Collection, t, opt, getByID, getInverse, getRelationships); err != nil {
						return err
					}
				}
			}
			if opt != nil && len(opt.Sort) > 0 {
				Sort(targets, opt.Sort)
			}
			if opt != nil && len(opt.Select) > 0 {
				projected := make([]docval.Map, len(targets))
				for i, t := range targets {
					projected[i] = Project(t, opt.Select)
				}
				targets = projected
			}
			rec[relName] = targets
		}
	}
	return nil
}

// populateNested recurses opt.Populate into a single already-cloned
// target record belonging to targetCollection, resolving that
// collection's own relationship declarations via getRelationships.
func populateNested(targetCollection string, target docval.Map, opt *PopulateOption, getByID GetByID, getInverse GetInverse, getRelationships GetRelationships) error {
	if len(opt.Populate) == 0 {
		return nil
	}
	if getRelationships == nil {
		return nil
	}
	rels := getRelationships(targetCollection)
	for name, nestedOpt := range opt.Populate {
		nestedRel, ok := rels[name]
		if !ok {
			return &ValidationError{Issues: []string{"populate names unknown relationship " + name}}
		}
		if err := Populate([]docval.Map{target}, name, nestedRel, nestedOpt, getByID, getInverse, getRelationships); err != nil {
			return err
		}
	}
	return nil
}
