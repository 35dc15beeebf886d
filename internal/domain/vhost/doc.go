// Package vhost models the virtual host registry: a mapping of domain to host
// record persisted as a single JSON object.
//
// The on-disk shape has drifted over time. The codec in this package accepts
// every historical alias layout (object array, string array, singular "alias"
// field) and always writes the canonical object-array layout back, so any save
// upgrades legacy data.
//
// Malformed entries never fail a whole registry. Fields with the wrong JSON type
// fall back to their defaults and entries that are not JSON objects are
// skipped. Only a top-level document that is not a JSON object is an error.
package vhost
