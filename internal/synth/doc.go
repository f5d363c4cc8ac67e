// Package synth turns an analyzed cell into the source of a callable unit.
//
// The unit is an arrow function whose parameters are the cell's inputs plus
// the sinks it needs. A bare expression is funneled through the display
// sink; a program that declares names reports them through report_outputs
// and returns them as a record:
//
//	1 + 1            =>  async (display) => {
//	                     display(await(
//	                     1 + 1
//	                     ))
//	                     }
//
//	const a = 1 + 1  =>  (report_outputs) => {
//	                     const a = 1 + 1
//	                     report_outputs({a});
//	                     return {a};
//	                     }
//
// Every rewrite is recorded on a Sourcemap so offsets in the generated
// source can be mapped back to the user's text.
package synth
