// Grounding: the offset-calculator/rewriter split mirrors
// original_source/core/src/offset_calculator/impls.rs and
// original_source/core/src/rewriter.rs (caching, monotone-left-to-right
// byte accounting, precondition on non-decreasing edit order). Span's
// ordering/stringify/hash rules mirror original_source/core/src/span.rs.
// No teacher (mpyw-ctxweaver) file is reused here: the teacher rewrites
// source via a decorated-AST round trip (github.com/dave/dst), which
// doesn't give the byte-identical round trip §8 requires — see DESIGN.md
// "Dropped teacher dependencies".
package span
