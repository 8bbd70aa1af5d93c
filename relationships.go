package proseql

import (
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/query"
)

// IDRef names a target entity by id, the shape every relationship
// directive binds by (spec §4.7's `{ connect: { id } }` / `{ set: [{
// id }, …] }`).
type IDRef struct {
	ID string
}

// RelationDirective is one relationship's extended-mutation directive.
// At most one of Connect/Create/Disconnect/Set is meaningful per call;
// which apply depends on the relationship's Kind.
type RelationDirective struct {
	Connect    *IDRef
	Create     Record
	Disconnect bool
	Set        []IDRef
}

// CreateWithRelationships creates input, applying ref-kind directives
// to the new record's own foreign keys before insert and inverse-kind
// directives (binding other collections back to the new id) after.
func (c *Collection) CreateWithRelationships(input Record, directives map[string]RelationDirective) (Record, error) {
	rec := docval.CloneMap(input)

	var inverse []string
	for name, dir := range directives {
		rel, ok := c.relationships[name]
		if !ok {
			return nil, &OperationError{Message: "createWithRelationships: unknown relationship " + name}
		}
		if rel.Kind == query.RelInverse {
			inverse = append(inverse, name)
			continue
		}
		if err := c.applyRefDirective(rec, rel, dir); err != nil {
			return nil, err
		}
	}

	created, err := c.Create(rec)
	if err != nil {
		return nil, err
	}

	for _, name := range inverse {
		rel := c.relationships[name]
		if err := c.applyInverseDirective(rel, created, directives[name]); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// UpdateWithRelationships updates id, applying ref-kind directives to
// the patch before the update and inverse-kind directives against the
// target collections after.
func (c *Collection) UpdateWithRelationships(id string, updates Record, directives map[string]RelationDirective) (Record, error) {
	patch := docval.CloneMap(updates)

	var inverse []string
	for name, dir := range directives {
		rel, ok := c.relationships[name]
		if !ok {
			return nil, &OperationError{Message: "updateWithRelationships: unknown relationship " + name}
		}
		if rel.Kind == query.RelInverse {
			inverse = append(inverse, name)
			continue
		}
		if err := c.applyRefDirective(patch, rel, dir); err != nil {
			return nil, err
		}
	}

	updated, err := c.Update(id, patch)
	if err != nil {
		return nil, err
	}

	for _, name := range inverse {
		rel := c.relationships[name]
		if err := c.applyInverseDirective(rel, updated, directives[name]); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// DeleteWithRelationships applies each directive's severing side effect
// to the target collections before running the normal cascade delete.
func (c *Collection) DeleteWithRelationships(id string, directives map[string]RelationDirective, opts DeleteOptions) (DeleteResult, error) {
	rec, err := c.FindByID(id)
	if err != nil {
		return DeleteResult{}, err
	}

	for name, dir := range directives {
		rel, ok := c.relationships[name]
		if !ok {
			return DeleteResult{}, &OperationError{Message: "deleteWithRelationships: unknown relationship " + name}
		}
		if rel.Kind == query.RelRef {
			continue // the entity itself is being removed; its own FK is moot
		}
		if err := c.applyInverseDirective(rel, rec, dir); err != nil {
			return DeleteResult{}, err
		}
	}

	return c.Delete(id, opts)
}

// DeleteManyWithRelationships applies DeleteWithRelationships to every
// record matching predicate, capped by opts.Limit if positive.
func (c *Collection) DeleteManyWithRelationships(predicate map[string]any, directives map[string]RelationDirective, opts DeleteManyOptions) (int, error) {
	snap := c.store.Snapshot()
	expr, err := query.Compile(predicate)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, id := range snap.IDs() {
		rec, _ := snap.Get(id)
		if query.Eval(expr, rec, c.db.searchIndex(), c.config.SearchFields) {
			ids = append(ids, id)
		}
		if opts.Limit > 0 && len(ids) >= opts.Limit {
			break
		}
	}

	count := 0
	for _, id := range ids {
		if _, err := c.DeleteWithRelationships(id, directives, DeleteOptions{}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// applyRefDirective mutates rec's own foreign key field for a ref-kind
// relationship's directive.
func (c *Collection) applyRefDirective(rec docval.Map, rel query.Relationship, dir RelationDirective) error {
	switch {
	case dir.Connect != nil:
		if _, ok := c.getByID(rel.Collection, dir.Connect.ID); !ok {
			return &ForeignKeyError{Collection: c.name, Relation: rel.Name, ID: dir.Connect.ID}
		}
		rec[rel.ForeignKey] = dir.Connect.ID
	case dir.Create != nil:
		target := c.db.Collection(rel.Collection)
		if target == nil {
			return &OperationError{Message: "unknown target collection " + rel.Collection}
		}
		created, err := target.Create(dir.Create)
		if err != nil {
			return err
		}
		rec[rel.ForeignKey] = created["id"]
	case dir.Disconnect:
		rec[rel.ForeignKey] = nil
	}
	return nil
}

// applyInverseDirective binds or unbinds the target collection's
// foreign key back to owner (an inverse-kind relationship).
func (c *Collection) applyInverseDirective(rel query.Relationship, owner Record, dir RelationDirective) error {
	target := c.db.Collection(rel.Collection)
	if target == nil {
		return &OperationError{Message: "unknown target collection " + rel.Collection}
	}
	ownerID, _ := owner["id"].(string)

	switch {
	case dir.Connect != nil:
		_, err := target.Update(dir.Connect.ID, Record{rel.ForeignKey: ownerID})
		return err
	case dir.Create != nil:
		input := docval.CloneMap(dir.Create)
		input[rel.ForeignKey] = ownerID
		_, err := target.Create(input)
		return err
	case dir.Disconnect:
		for _, rec := range c.getInverse(rel.Collection, rel.ForeignKey, ownerID) {
			refID, _ := rec["id"].(string)
			if _, err := target.Update(refID, Record{rel.ForeignKey: nil}); err != nil {
				return err
			}
		}
	case dir.Set != nil:
		wanted := make(map[string]bool, len(dir.Set))
		for _, ref := range dir.Set {
			wanted[ref.ID] = true
		}
		for _, rec := range c.getInverse(rel.Collection, rel.ForeignKey, ownerID) {
			refID, _ := rec["id"].(string)
			if !wanted[refID] {
				if _, err := target.Update(refID, Record{rel.ForeignKey: nil}); err != nil {
					return err
				}
			}
		}
		for id := range wanted {
			if _, err := target.Update(id, Record{rel.ForeignKey: ownerID}); err != nil {
				return err
			}
		}
	}
	return nil
}
