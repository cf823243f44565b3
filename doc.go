/*
Package binindex builds static, pivot-indexed lookup structures over
key/value datasets and stores them in content-addressed object stores.
A single root address is produced, from which any key can be located by
fetching at most two objects: the root and one bin.

Keys are hex-encoded unsigned integers of arbitrary width, with an
optional 0x prefix. They are ordered by numeric value, never
lexicographically.

Data Structure Documentation

Index

An index comprises a series of bins followed by a root. Bins are
stored first, the root is only stored once every bin has been stored.

    Index layout:
    +-------+---------+-------+------+
    | bin 1 |   ...   | bin n | root |
    +-------+---------+-------+------+

Root

The root is a JSON object which ties together caller metadata, one pivot
per bin, the bin addresses and the full sorted key sequence.

    {
      "metadata": <opaque>,
      "pivots":   ["0x01", "0x02"],          // greatest key of each bin
      "bins":     ["sha256:...", "sha256:..."], // index-aligned with pivots
      "keys":     ["0x00", "0x01", "0x02"]    // all keys, ascending
    }

A consumer locates a key k in bin i, where i is the first position with
pivots[i] >= k.

Bin

A bin is a JSON object mapping each key of one contiguous slice of the
sorted sequence to its value. All bins but the last hold exactly BinSize
entries.

    {"0x00": "a", "0x01": "b"}

Stored Blob

Byte-oriented stores (see NewKVStore) frame each object with a trailing
compression type indicator. Addresses are always computed over the plain
JSON, so compression never changes an address.

    +-------------------+---------------------------+
    | payload (varlen)  | compression type (1-byte) |
    +-------------------+---------------------------+
*/
package binindex
