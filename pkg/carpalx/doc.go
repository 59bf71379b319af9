// Package carpalx computes the typing effort of keyboard layouts.
//
// The effort of a triad, three consecutive key presses, follows the carpalx
// model (http://mkweb.bcgsc.ca/carpalx/?typing_effort) extended to presses
// involving several buttons at once:
//
//	effort = kB·b + kP·p + kS·s
//
// b blends the intrinsic effort of the pressed buttons, p their positional
// penalty (hand, row and finger) and s the stroke path, which classifies how
// hands, rows and fingers change over the three presses. For presses with
// modifiers b and p add every involved button plus a penalty per additional
// key, while s takes the easiest reading picking one button per press.
//
// An [Evaluator] memoizes triad costs in a [Cache] and keeps a running
// weighted sum in its [Accumulator]. [Evaluator.Copy] yields an evaluator
// with its own accumulator but the same cache, which is what the optimizer
// uses to track candidate layouts cheaply:
//
//	m, _ := carpalx.LoadModel("mod01")
//	e, err := carpalx.New(m, kb, nil)
//	if err != nil {
//	    return err
//	}
//	e.AddTriads(counts)
//	fmt.Println(e.Effort())
package carpalx
