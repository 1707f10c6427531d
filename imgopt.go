// Package imgopt re-encodes images to the smallest output that satisfies a
// byte budget and/or a perceptual difference bound.
//
// For every candidate format an encoder's quality parameter is bisected until
// the constraint holds; the smallest satisfying encoding across formats wins.
// When nothing satisfies the constraint the closest candidate is returned with
// Passed set to false and a Reason explaining why.
//
//	opt := imgopt.New()
//	res, err := opt.Optimize(imgopt.Request{Input: data, MaxBytes: 50_000})
//	if err != nil {
//		return err
//	}
//	return res.Save("out." + res.Extension())
package imgopt

// ContractVersion is the version of the Request/Result contract. Requests
// carrying any other non-zero version are rejected.
const ContractVersion = 1

var version = "0.1.0"

// Version returns the library version.
func Version() string { return version }
