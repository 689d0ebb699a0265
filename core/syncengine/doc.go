// Package syncengine extends a locally held series towards a join date and
// towards "now" by paging through a remote source. Both directions advance a
// boundary after every page and stop as soon as a page brings no progress or
// the remaining window collapses, so short pages, overlapping pages and
// duplicate records are all tolerated.
package syncengine
