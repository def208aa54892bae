// Package classify decides what a booking page shows: free slots, an
// explicit "no availability" message, a blank (blocked) response, or
// nothing conclusive.
//
// Classification is split in two phases. Capture reads every document of a
// browser session (main page and embedded frames) into a Snapshot; Evaluate
// is a pure function over that snapshot. Keeping Evaluate free of I/O lets
// the decision rules be tested exhaustively without a browser.
//
// # Decision order
//
// The first matching rule wins:
//  1. Blank: visible text and collapsed markup are both below the
//     configured minimums. The page is treated as an access denial.
//  2. No slots: a negative phrase such as "No hay horas disponibles" is
//     visible in any document.
//  3. Slots: interactive elements carry an hour:minute label and a "free"
//     marker in their own text or their immediate context.
//  4. Tolerant slots: time-labelled elements without the marker, when
//     tolerant mode is enabled (some widgets omit the marker).
//  5. Otherwise the result is ambiguous and reported as a timeout.
//
// Design decision: The ambiguous case is never folded into "no slots".
// A widget that rendered neither a negative message nor any slot is more
// likely half loaded than empty, and reporting it as "no slots" would hide
// real availability.
package classify
