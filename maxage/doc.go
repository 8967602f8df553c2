// Package maxage reconciles the max-age proposals of one unit of work into a
// single effective value.
//
// The most restrictive proposal wins: the effective value is the minimum of
// all finite proposals, Permanent counts as "no constraint", and 0 means "do
// not cache". With no finite proposal the result is Permanent. Alter
// collaborators may then override the value outright, and observers apply
// the external policy cap when emitting.
package maxage
