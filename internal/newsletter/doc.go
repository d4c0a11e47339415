// Package newsletter translates channel (newsletter) operations into IQ
// requests and parses their responses into typed values.
//
// Ownership boundary:
// - tree-query and mex-query request construction
// - metadata extraction from mex JSON results
// - fetched-update parsing with concurrent message decryption
// - inbound mex notification parsing
//
// Transport, node codec and cryptographic session state are collaborators
// reached through the Transport and Decryptor interfaces.
package newsletter
