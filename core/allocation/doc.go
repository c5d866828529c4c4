// Package allocation distributes charger throughput to a fleet over a
// discrete charging window.
//
// Every hour the vehicles are ranked by remaining deficit (largest first,
// lower index on ties) and each resource class hands its slots to the
// ranked vehicles in turn. A slot serves one vehicle per hour and delivers at
// most the unit capacity scaled by the hour's rate, the vehicle's remaining
// deficit and what is left of the optional hourly demand ceiling. The
// process is greedy: nothing is carried over between hours and earlier
// decisions are never revisited.
//
// The engine never fails on infeasible inputs. Energy still missing at the
// end of the window is reported through Result.Unmet and left to callers.
package allocation
