/*
Package markov implements a fixed-order, character-level Markov model of text.

A Model is trained once from a string and an order k. Training treats the text
as circular, so every one of its n positions contributes exactly one k-gram and
one successor rune. The trained Model is immutable and can be queried for raw
k-gram and transition frequencies, for conditional probabilities (falling back
to the global rune frequency for k-grams never seen in training), used to
generate synthetic text from a caller-supplied random source, or used to
restore runes marked with Unknown by maximum-likelihood inference over the
surrounding 2k+1 rune window.

Models can be exported to and imported from JSON, and persisted as whole
snapshots in a SQLite database through a Store.
*/
package markov
