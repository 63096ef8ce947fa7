// Package properties renders the node's fisco.properties and
// weidentity.properties from their templates and reads generated files back
// as explicit snapshots.
//
// Rendering is literal ${NAME} substitution. What an absent source key
// renders to is chosen by MissingKeyPolicy.
package properties
