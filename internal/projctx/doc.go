// Package projctx gathers the project background that accompanies a staged
// diff: an optional overview document and a pruned listing of the files in
// the working tree.
package projctx
