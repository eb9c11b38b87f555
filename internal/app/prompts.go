package app

const classifySystem = `Break down this real-estate search query into key terms.
Each term is one of: a bedroom count, a bathroom count, a location, a price, or any other feature the searcher wants.
Put comparison words such as "under", "over", "around", "at least" or "up to" in descriptor and keep the number or phrase in term.
Do not invent terms that are not in the query.`

const rangeSystem = `Convert the request into an inclusive integer range.
"under 600" means max 600. "over 3", "at least 3" or "3+" means min 3. "between 2 and 4" means min 2 and max 4.
A bare count such as "2 bedroom" means exactly that count: set both min and max to it.
Leave out any bound the request does not imply.`

const locationSystem = `Extract the place the user wants to live in or near, and the distance from that place if one is given.
Travel times such as "10 minutes" keep their unit.`

const filtersSystem = `Extract structured search filters from this real-estate query.
Anything that is not a bedroom count, a bathroom count, a price, a location or the purchase intention goes into keywords.
A bare bedroom or bathroom count such as "2 bedroom" means exactly that count: set both min and max to it.`
