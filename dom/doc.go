/*
Package dom provides code for entity schema declaration and registration.

Entities are the primary focus of this package. An entity declares named
fields, each resolving to exactly one structural type tag: plain attributes,
relationships to other entities, calculations with typed arguments and
aggregates over relationship paths. Entities are always part of a schema,
which also carries the client naming convention and the custom scalar codec
registry. The schema is an explicit context object passed to every layer;
there is no process-wide registry.

Schemas can be declared programmatically or loaded from a YAML document.
Validation checks that every entity reference resolves, that field names are
unique per entity, and fills in derivable aggregate result types, so that
type resolution is total for all declared fields afterwards.

Materialized records use two sentinel values to distinguish kinds of absence:
NotLoaded marks a field that was never fetched, Forbidden marks a field the
caller may not see. Both compare by identity.
*/
package dom
