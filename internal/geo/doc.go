// Package geo classifies points against polygonal regions.
//
// Classification runs in two phases. The containment pass assigns each
// point to the first region (in input order) whose polygon contains it.
// Points left over are handed to the proximity pass, which assigns a
// point to the region with the nearest outer boundary when that boundary
// lies closer than a distance threshold. Every point ends up in exactly
// one region's set or in the unassigned list.
package geo
